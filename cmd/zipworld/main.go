package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"zipworld/internal/anvil"
	"zipworld/internal/archive"
	"zipworld/internal/chunkedit"
	"zipworld/internal/coords"
	"zipworld/internal/provider"
)

type commonFlags struct {
	world   string
	prefix  string
	verbose bool
}

type exitCoder interface {
	error
	ExitCode() int
}

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *cliError) ExitCode() int {
	return e.code
}

func exitError(code int, err error) error {
	return &cliError{code: code, err: err}
}

func exitErrorf(code int, format string, args ...any) error {
	return exitError(code, fmt.Errorf(format, args...))
}

func newRootCmd() *cobra.Command {
	cf := &commonFlags{}
	root := &cobra.Command{
		Use:           "zipworld",
		Short:         "Read Minecraft chunk data out of zipped worlds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cf.world, "world", "", "Path to the zipped world")
	root.PersistentFlags().StringVar(&cf.prefix, "prefix", "", "Fixed region folder inside the archive (default: discover)")
	root.PersistentFlags().BoolVar(&cf.verbose, "verbose", false, "Log archive contents and cache activity to stderr")

	root.AddCommand(
		newChunkCmd(cf),
		newEntityCmd(cf),
		newRegionsCmd(cf),
		newPrefixCmd(cf),
	)

	return root
}

func newChunkCmd(cf *commonFlags) *cobra.Command {
	var cx, cz int

	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Manage chunk data within a zipped world",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().IntVar(&cx, "cx", 0, "Chunk X coordinate")
	cmd.PersistentFlags().IntVar(&cz, "cz", 0, "Chunk Z coordinate")

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the chunk at the given chunk coordinates as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunkGet(cf, cx, cz)
		},
	}
	cmd.AddCommand(get)

	return cmd
}

func newEntityCmd(cf *commonFlags) *cobra.Command {
	var x, y, z int

	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Inspect block entities within a zipped world",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().IntVar(&x, "x", 0, "Block X coordinate")
	cmd.PersistentFlags().IntVar(&y, "y", 0, "Block Y coordinate")
	cmd.PersistentFlags().IntVar(&z, "z", 0, "Block Z coordinate")

	get := &cobra.Command{
		Use:   "get",
		Short: "Inspect the block entity at the given block coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntityGet(cf, x, y, z)
		},
	}
	cmd.AddCommand(get)

	return cmd
}

func newRegionsCmd(cf *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the regions stored in a zipped world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(cf)
		},
	}
}

func newPrefixCmd(cf *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prefix",
		Short: "Print the discovered region folder of a zipped world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefix(cf)
		},
	}
}

func openProvider(cf *commonFlags) (*provider.ZipChunkProvider, *archive.Zip, error) {
	if cf.world == "" {
		return nil, nil, errors.New("--world must be specified")
	}
	z, err := archive.OpenZipFile(cf.world)
	if err != nil {
		return nil, nil, err
	}

	var opts []provider.Option
	if cf.prefix != "" {
		opts = append(opts, provider.WithPrefix(cf.prefix))
	}
	if cf.verbose {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, provider.WithLogger(log))
	}

	p, err := provider.NewZipChunkProvider(z, opts...)
	if err != nil {
		z.Close()
		return nil, nil, err
	}
	return p, z, nil
}

func runChunkGet(cf *commonFlags, cx, cz int) error {
	p, z, err := openProvider(cf)
	if err != nil {
		return exitErrorf(1, "open world: %w", err)
	}
	defer z.Close()

	chunk, err := p.LoadChunk(cx, cz)
	if err != nil {
		return exitError(loadErrorCode(err), fmt.Errorf("load chunk: %w", err))
	}

	out, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return exitErrorf(1, "encode chunk: %w", err)
	}
	fmt.Println(string(out))

	return nil
}

func runEntityGet(cf *commonFlags, x, y, z int) error {
	p, zf, err := openProvider(cf)
	if err != nil {
		return exitErrorf(1, "open world: %w", err)
	}
	defer zf.Close()

	cx, cz := coords.WorldToChunkXZ(x, z)
	chunk, err := p.LoadChunk(cx, cz)
	if err != nil {
		return exitError(loadErrorCode(err), fmt.Errorf("load chunk: %w", err))
	}

	ent, ok := chunkedit.GetBlockEntity(chunk, x, y, z)
	if !ok {
		return exitErrorf(2, "not found at (%d,%d,%d) in %s", x, y, z, cf.world)
	}

	out, err := json.MarshalIndent(ent, "", "  ")
	if err != nil {
		return exitErrorf(1, "encode entity: %w", err)
	}
	fmt.Println(string(out))

	return nil
}

func runRegions(cf *commonFlags) error {
	p, z, err := openProvider(cf)
	if err != nil {
		return exitErrorf(1, "open world: %w", err)
	}
	defer z.Close()

	for _, pos := range p.Regions() {
		fmt.Printf("%s\t(%d, %d)\n", p.Prefix()+coords.RegionFileName(pos.X, pos.Z), pos.X, pos.Z)
	}

	return nil
}

func runPrefix(cf *commonFlags) error {
	p, z, err := openProvider(cf)
	if err != nil {
		return exitErrorf(1, "open world: %w", err)
	}
	defer z.Close()

	fmt.Println(p.Prefix())

	return nil
}

// loadErrorCode maps "no data there" outcomes to exit code 2, everything
// else to 1.
func loadErrorCode(err error) int {
	var notFound *provider.RegionNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, anvil.ErrChunkNotPresent) {
		return 2
	}
	return 1
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if ec, ok := err.(exitCoder); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(ec.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
