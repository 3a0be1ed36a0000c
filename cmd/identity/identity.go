// Package identity implements offline management of the identity database.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/identity"
)

// Command creates the identity command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage known face identities",
	}

	cmd.AddCommand(
		listCommand(settings),
		addCommand(settings),
		removeCommand(settings),
		importCommand(settings),
		exportCommand(settings),
	)
	return cmd
}

// withStore opens the configured repository, loads it and runs fn. When save is set
// the store is written back after fn succeeds.
func withStore(ctx context.Context, settings *conf.Settings, save bool, fn func(*identity.Store) error) error {
	repo, closeRepo, err := identity.OpenRepository(settings.Identity.Backend, settings.Identity.DBPath, settings.Identity.SQLitePath)
	if err != nil {
		return err
	}
	defer func() { _ = closeRepo() }()

	store := identity.NewStore(identity.WithThreshold(settings.Identity.Threshold))
	if err := store.LoadFrom(ctx, repo); err != nil {
		// A database that does not exist yet is created on save.
		if !save || !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	if err := fn(store); err != nil {
		return err
	}
	if save {
		return store.SaveTo(ctx, repo)
	}
	return nil
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, false, func(store *identity.Store) error {
				return writeList(cmd.OutOrStdout(), store)
			})
		},
	}
}

func writeList(w io.Writer, store *identity.Store) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIMENSIONS")
	for _, name := range store.Names() {
		emb, _ := store.Embedding(name)
		fmt.Fprintf(tw, "%s\t%d\n", name, len(emb))
	}
	return tw.Flush()
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var (
		values   string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedding, err := readEmbedding(values, fromFile)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), settings, true, func(store *identity.Store) error {
				store.Add(args[0], embedding)
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%d dimensions)\n", args[0], len(embedding))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&values, "embedding", "", "Comma separated embedding values")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "JSON file holding the embedding as an array of numbers")
	cmd.MarkFlagsMutuallyExclusive("embedding", "from-file")
	cmd.MarkFlagsOneRequired("embedding", "from-file")
	return cmd
}

// readEmbedding parses either a comma separated list or a JSON array file.
func readEmbedding(values, fromFile string) ([]float32, error) {
	var embedding []float32

	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, errors.New(err).
				Component("identity-cli").
				Category(errors.CategoryFileIO).
				Context("path", fromFile).
				Build()
		}
		if err := json.Unmarshal(data, &embedding); err != nil {
			return nil, errors.New(fmt.Errorf("embedding file must hold a JSON array of numbers: %w", err)).
				Component("identity-cli").
				Category(errors.CategoryFileParsing).
				Context("path", fromFile).
				Build()
		}
	} else {
		for i, field := range strings.Split(values, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, errors.Newf("embedding value %d: %v", i, err).
					Component("identity-cli").
					Category(errors.CategoryValidation).
					Build()
			}
			embedding = append(embedding, float32(v))
		}
	}

	if len(embedding) == 0 {
		return nil, errors.Newf("embedding is empty").
			Component("identity-cli").
			Category(errors.CategoryValidation).
			Build()
	}
	return embedding, nil
}

func removeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, true, func(store *identity.Store) error {
				if !store.Remove(args[0]) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func importCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge identities from a JSON mapping of name to embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := identity.NewJSONFile(args[0]).LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), settings, true, func(store *identity.Store) error {
				for _, ref := range refs {
					store.Add(ref.Name, ref.Embedding)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d identities, %d total\n", len(refs), store.Len())
				return nil
			})
		},
	}
}

func exportCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write all identities to a JSON mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, false, func(store *identity.Store) error {
				if err := store.SaveTo(cmd.Context(), identity.NewJSONFile(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d identities to %s\n", store.Len(), args[0])
				return nil
			})
		},
	}
}
