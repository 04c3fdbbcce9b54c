package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/jelmer/ctrlproxy-sub000/config"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/pkg/errors"
)

var usage = `lstool.
Inspects the linestack of a network. The proxy must not be running.
Without commands, they are read one per line from standard input.
Usage:
	lstool [--conf <filename>] <network> [<command>...]
	lstool -h | --help
Commands:
	mark        Remember the current end of the linestack.
	replay      Print the lines since the mark.
	dump-state  Print the network state at the mark.
Options:
	--conf <filename>  Configuration file to use [default: config.toml].
	-h --help          Show this screen.`

func main() {
	arguments, _ := docopt.ParseArgs(usage, nil, "")

	conf := config.FromFile(arguments["--conf"].(string))
	if errs := conf.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Println(e)
		}
		os.Exit(1)
	}

	ls, err := open(conf, arguments["<network>"].(string))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer ls.Close()

	ctx := context.Background()
	cmds, _ := arguments["<command>"].([]string)
	if len(cmds) > 0 {
		err = run(ctx, ls, cmds, os.Stdout)
	} else {
		err = interactive(ctx, ls, os.Stdin, os.Stdout)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// open opens the linestack the proxy keeps for network.
func open(conf *config.Config, network string) (*linestack.Linestack, error) {
	netConf := conf.Network(network)
	if netConf == nil {
		return nil, errors.Errorf("no network named %s in %s", network, conf.Filename())
	}

	return linestack.Open(conf.Linestack(), linestack.Options{
		Dir:              filepath.Join(conf.StateDir(), network),
		SnapshotInterval: int(netConf.SnapshotInterval()),
	})
}

// run executes the named commands in order in one session.
func run(ctx context.Context, ls *linestack.Linestack, names []string, w io.Writer) error {
	cmds := make([]linestack.Command, len(names))
	for i, name := range names {
		cmd, err := linestack.ParseCommand(name)
		if err != nil {
			return err
		}
		cmds[i] = cmd
	}

	s := linestack.NewSession(ls)
	defer s.Close()
	for _, cmd := range cmds {
		if err := s.Run(ctx, cmd, w); err != nil {
			return err
		}
	}
	return nil
}

// interactive reads commands from r until it ends. Bad commands are
// reported and skipped.
func interactive(ctx context.Context, ls *linestack.Linestack, r io.Reader, w io.Writer) error {
	s := linestack.NewSession(ls)
	defer s.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if len(name) == 0 {
			continue
		}
		if name == "quit" || name == "exit" {
			break
		}

		cmd, err := linestack.ParseCommand(name)
		if err == nil {
			err = s.Run(ctx, cmd, w)
		}
		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
	return scanner.Err()
}
