// Command viewstate inspects and maintains saved view state in the store
// configured through VIEWCORE_* variables or a YAML file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"gopkg.in/yaml.v3"

	"viewcore/internal/codec"
	"viewcore/internal/config"
	"viewcore/internal/core"
	"viewcore/pkg/domain"
)

const version = "0.1.0"

const usage = `Saved view state tool.

Usage:
    viewstate list [--config=<file>] [<view>]
    viewstate show [--config=<file>] <key>
    viewstate delete [--config=<file>] <key>
    viewstate prune [--config=<file>] --older-than=<duration>
    viewstate verify [--config=<file>] <token>
    viewstate -h | --help
    viewstate --version

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --config=<file>            YAML settings, overridden by VIEWCORE_* variables.
    --older-than=<duration>    Age past which saved views are pruned, e.g. 24h.
`

var (
	exitFunc = os.Exit
	nowFunc  = time.Now
)

func main() {
	exitFunc(cli(os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr))
}

// cli runs one command and returns the process exit code.
func cli(args []string, lookup func(string) (string, bool), stdout, stderr io.Writer) int {
	helped := false
	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			helped = true
			if err != nil {
				_, _ = fmt.Fprintln(stderr, usage)
				return
			}
			_, _ = fmt.Fprintln(stdout, usage)
		},
	}
	opts, err := parser.ParseArgs(usage, args, version)
	if helped {
		if err != nil {
			return 2
		}
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	if err := run(context.Background(), opts, lookup, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "viewstate: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(opts docopt.Opts, lookup func(string) (string, bool)) (config.Config, error) {
	file, _ := opts["--config"].(string)
	if file == "" {
		return config.LoadFrom(lookup)
	}
	return config.LoadFrom(func(name string) (string, bool) {
		if name == config.EnvConfigFile {
			return file, true
		}
		return lookup(name)
	})
}

func run(ctx context.Context, opts docopt.Opts, lookup func(string) (string, bool), out io.Writer) (err error) {
	cfg, err := loadConfig(opts, lookup)
	if err != nil {
		return err
	}
	if verify, _ := opts.Bool("verify"); verify {
		token, _ := opts.String("<token>")
		return verifyToken(cfg, token, out)
	}
	if cfg.State.Method == domain.StateSavingClient {
		return errors.New("client state saving keeps no views on the server")
	}
	store, err := core.OpenStateStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	switch {
	case command(opts, "list"):
		view, _ := opts["<view>"].(string)
		return list(ctx, store, view, out)
	case command(opts, "show"):
		key, _ := opts.String("<key>")
		return show(ctx, store, key, out)
	case command(opts, "delete"):
		key, _ := opts.String("<key>")
		ok, err := store.Delete(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved view %s", key)
		}
		_, err = fmt.Fprintf(out, "deleted %s\n", key)
		return err
	case command(opts, "prune"):
		raw, _ := opts.String("--older-than")
		age, err := time.ParseDuration(raw)
		if err != nil || age <= 0 {
			return fmt.Errorf("--older-than %q is not a positive duration", raw)
		}
		n, err := store.Prune(ctx, nowFunc().Add(-age))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "pruned %d views\n", n)
		return err
	}
	return errors.New("no command")
}

func command(opts docopt.Opts, name string) bool {
	b, _ := opts.Bool(name)
	return b
}

func list(ctx context.Context, store domain.StateStore, view string, out io.Writer) error {
	views, err := store.List(ctx, view)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tVIEW\tCREATED\tBYTES")
	for _, v := range views {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", v.Key, v.ViewID, v.CreatedAt.UTC().Format(time.RFC3339), len(v.Payload))
	}
	return tw.Flush()
}

type savedDump struct {
	Key       string    `yaml:"key"`
	View      string    `yaml:"view"`
	CreatedAt time.Time `yaml:"created_at"`
	Bytes     int       `yaml:"bytes"`
	State     any       `yaml:"state"`
}

func show(ctx context.Context, store domain.StateStore, key string, out io.Writer) error {
	sv, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no saved view %s", key)
	}
	snapshot, err := codec.Decode(sv.Payload)
	if err != nil {
		return err
	}
	return dump(out, savedDump{Key: sv.Key, View: sv.ViewID, CreatedAt: sv.CreatedAt.UTC(), Bytes: len(sv.Payload), State: snapshot})
}

func verifyToken(cfg config.Config, token string, out io.Writer) error {
	signer, err := codec.NewSigner([]byte(cfg.State.TokenSecret), cfg.State.TokenTTL)
	if err != nil {
		return err
	}
	viewID, payload, err := signer.Verify(token)
	if err != nil {
		return err
	}
	snapshot, err := codec.Decode(payload)
	if err != nil {
		return err
	}
	return dump(out, savedDump{View: viewID, Bytes: len(payload), State: snapshot})
}

func dump(out io.Writer, d savedDump) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
