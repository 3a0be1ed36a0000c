// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/optix-bridge.log")
	viper.SetDefault("logging.file.level", "")

	viper.SetDefault("ingest.enabled", true)
	viper.SetDefault("ingest.listen", ":50051")
	viper.SetDefault("ingest.queuesize", 30)
	viper.SetDefault("ingest.puttimeout", time.Second)
	viper.SetDefault("ingest.maxmessagemb", 32)
	viper.SetDefault("ingest.injector", InjectorAppSrc)
	viper.SetDefault("ingest.appsrc.pipeline", "appsrc name=src ! fakesink")
	viper.SetDefault("ingest.appsrc.width", 1920)
	viper.SetDefault("ingest.appsrc.height", 1080)
	viper.SetDefault("ingest.appsrc.framerate", 30)

	viper.SetDefault("emitter.target", "localhost:50052")
	viper.SetDefault("emitter.timeout", 500*time.Millisecond)

	viper.SetDefault("identity.dbpath", "known_faces.json")
	viper.SetDefault("identity.threshold", 0.6)
	viper.SetDefault("identity.backend", BackendJSON)
	viper.SetDefault("identity.sqlitepath", "identities.db")

	viper.SetDefault("tracking.ttl", time.Duration(0))
	viper.SetDefault("tracking.cleanupinterval", time.Minute)

	viper.SetDefault("annotate.classid", 0)
	viper.SetDefault("annotate.classlabel", "person")

	viper.SetDefault("processor.queuesize", 64)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "optix/frames")
	viper.SetDefault("mqtt.clientid", "optix-bridge")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", ":8090")
}
