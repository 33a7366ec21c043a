package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/odatalake/internal/storage/chunkstore"
)

// blobOutput is printed by blob put and blob revision.
type blobOutput struct {
	Key string `json:"key"`
	chunkstore.WriteResult
}

func newBlobCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Work with the blob store directly (the server must not hold the store open)",
	}
	cmd.AddCommand(newBlobPutCommand(opts))
	cmd.AddCommand(newBlobGetCommand(opts))
	cmd.AddCommand(newBlobHashCommand(opts))
	cmd.AddCommand(newBlobRevisionCommand(opts))
	cmd.AddCommand(newBlobBucketsCommand(opts))
	return cmd
}

func (o *rootOptions) withStore(cmd *cobra.Command, fn func(*chunkstore.Store) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newBlobPutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> [file]",
		Short: "Store a file (or stdin) as a new revision of key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			return opts.withStore(cmd, func(store *chunkstore.Store) error {
				res, err := store.Ingest(cmd.Context(), args[0], src)
				if err != nil {
					return fmt.Errorf("put %s (last chunk %d): %w", args[0], res.LastChunk, err)
				}
				return writeJSON(cmd.OutOrStdout(), blobOutput{Key: args[0], WriteResult: res})
			})
		},
	}
}

func newBlobGetCommand(opts *rootOptions) *cobra.Command {
	var revision int64
	var outPath string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Write the latest (or a given) revision of key to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return opts.withStore(cmd, func(store *chunkstore.Store) error {
				ctx := cmd.Context()
				latest, err := store.ResolveRevision(ctx, key)
				if err != nil {
					return err
				}
				rev := latest
				if cmd.Flags().Changed("revision") {
					rev = revision
				}
				if latest < 0 || rev < 0 || rev > latest {
					return &exitCodeError{code: 1, msg: fmt.Sprintf("%v: %s revision %d", chunkstore.ErrNotFound, key, rev)}
				}
				var sink io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					sink = f
				}
				return store.ScanRevision(ctx, key, rev, func(_ int, data []byte) error {
					_, err := sink.Write(data)
					return err
				})
			})
		},
	}
	cmd.Flags().Int64Var(&revision, "revision", 0, "revision to read instead of the latest")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newBlobHashCommand(opts *rootOptions) *cobra.Command {
	var alg, enc string
	cmd := &cobra.Command{
		Use:   "hash <key>",
		Short: "Digest the latest revision of key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *chunkstore.Store) error {
				sum, err := store.Hash(cmd.Context(), args[0], alg, enc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sum)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&alg, "alg", chunkstore.AlgSHA256, "md5|sha1|sha256|sha512|blake3")
	cmd.Flags().StringVar(&enc, "encoding", chunkstore.EncHex, "hex|base64")
	return cmd
}

func newBlobRevisionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revision <key>",
		Short: "Print the latest revision of key (-1 when never written)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *chunkstore.Store) error {
				rev, err := store.ResolveRevision(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rev)
				return nil
			})
		},
	}
}

func newBlobBucketsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets <schema>",
		Short: "List the registered buckets of schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(store *chunkstore.Store) error {
				buckets, err := store.ListBuckets(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), buckets)
			})
		},
	}
}
