// Command checkcontract runs contract modules through the admission pipeline
// of the sandbox.
package main

import (
	"fmt"
	"io"
	"os"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cosmwasm "github.com/CosmWasm/wasmsandbox"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/db"
	"github.com/CosmWasm/wasmsandbox/types"
)

type flags struct {
	configPath  string
	logLevel    string
	featureGate bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	rootCmd := &cobra.Command{
		Use:           "checkcontract",
		Short:         "Validate, compile and run contract modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&f.configPath, "config", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&f.featureGate, "feature-gate", false, "admit through the gatekeeper toggles of the config instead of the deterministic policy")

	rootCmd.AddCommand(checkCommand(f), compileCommand(f), runCommand(f))
	return rootCmd
}

func (f *flags) newVM(stderr io.Writer) (*cosmwasm.VM, error) {
	logger, err := f.newLogger(stderr)
	if err != nil {
		return nil, err
	}
	cfg := types.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = types.LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}
	var opts []cosmwasm.Option
	if f.featureGate {
		opts = append(opts, cosmwasm.WithFeatureGate())
	}
	return cosmwasm.NewVM(cfg, logger, opts...)
}

func (f *flags) newLogger(stderr io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(f.logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", f.logLevel, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger(), nil
}

func checkCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Run static validation and the gatekeeper on every file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := f.newVM(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer vm.Close(cmd.Context())

			failed := 0
			for _, path := range args {
				code, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := vm.StaticCheck(code); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAIL %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d modules rejected", failed, len(args))
			}
			return nil
		},
	}
}

func compileCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE",
		Short: "Admit and compile a module, then print its checksum and required capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vm, err := f.newVM(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer vm.Close(ctx)

			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			module, err := vm.Compile(ctx, code)
			if err != nil {
				return err
			}
			defer module.Close(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "checksum: %s\n", module.Checksum)
			fmt.Fprintf(cmd.OutOrStdout(), "required capabilities: %v\n", module.RequiredCapabilities.Sorted())
			return nil
		},
	}
}

type runFlags struct {
	gasLimit uint64
	dbDir    string
	write    bool
	debug    bool
}

func runCommand(f *flags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run FILE ENTRY_POINT [MSG...]",
		Short: "Compile a module and call one entry point with the given messages",
		Long: `Compile a module, instantiate it against a key value store and call
ENTRY_POINT with one Region per MSG. The store is a goleveldb database under
--db-dir, or an in-memory database when the flag is empty.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vm, err := f.newVM(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer vm.Close(ctx)

			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			module, err := vm.Compile(ctx, code)
			if err != nil {
				return err
			}
			defer module.Close(ctx)

			store, err := rf.openDB()
			if err != nil {
				return err
			}
			defer store.Close()
			storage := db.NewDBStorage(store)
			defer storage.Close()

			backend := types.Backend{API: db.MockAPI{}, Storage: storage, Querier: db.NewMockQuerier()}
			instance, err := vm.Instantiate(ctx, module, backend, cosmwasm.InstanceOptions{
				GasLimit:   rf.gasLimit,
				PrintDebug: rf.debug,
			})
			if err != nil {
				return err
			}
			defer instance.Close(ctx)

			msgs := make([][]byte, 0, len(args)-2)
			for _, msg := range args[2:] {
				msgs = append(msgs, []byte(msg))
			}
			res, callErr := instance.Call(ctx, args[1], !rf.write, msgs...)
			report, err := instance.GasReport()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gas: limit %d, remaining %d, used internally %d, used externally %d\n",
				report.Limit, report.Remaining, report.UsedInternally, report.UsedExternally)
			if callErr != nil {
				return callErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "result: %s\n", res)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&rf.gasLimit, "gas-limit", 500_000_000_000, "gas limit of the call")
	cmd.Flags().StringVar(&rf.dbDir, "db-dir", "", "directory of the goleveldb store (in-memory when empty)")
	cmd.Flags().BoolVar(&rf.write, "write", false, "allow storage writes")
	cmd.Flags().BoolVar(&rf.debug, "debug", false, "log messages of the debug import")
	return cmd
}

func (rf *runFlags) openDB() (dbm.DB, error) {
	if rf.dbDir == "" {
		return dbm.NewMemDB(), nil
	}
	store, err := dbm.NewDB("contract", dbm.GoLevelDBBackend, rf.dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store in %s: %w", rf.dbDir, err)
	}
	return store, nil
}
