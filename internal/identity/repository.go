package identity

import (
	"fmt"
)

// Backend names accepted by OpenRepository.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// OpenRepository returns the repository for backend. The returned close function is
// never nil.
func OpenRepository(backend, jsonPath, sqlitePath string) (Repository, func() error, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONFile(jsonPath), func() error { return nil }, nil
	case BackendSQLite:
		repo, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown identity backend %q", backend)
	}
}
