// Command ctrlproxy keeps connections to IRC networks open and lets any
// number of IRC clients share them.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/jelmer/ctrlproxy-sub000/config"
	"github.com/jelmer/ctrlproxy-sub000/proxy"
	log "gopkg.in/inconshreveable/log15.v2"
)

const usage = `ctrlproxy.
Usage:
	ctrlproxy [--conf <filename>] [--stdin]
	ctrlproxy check [--conf <filename>]
	ctrlproxy -h | --help
	ctrlproxy --version
Options:
	--conf <filename>  Configuration file to use [default: config.toml].
	--stdin            Shut down when a line is read from standard input.
	-h --help          Show this screen.
	--version          Show version.`

func main() {
	arguments, _ := docopt.ParseArgs(usage, nil, proxy.Version)

	conf := config.FromFile(arguments["--conf"].(string))
	logger := newLogger(conf)

	if errs := conf.Validate(); len(errs) > 0 {
		conf.DisplayErrors(logger)
		os.Exit(1)
	}
	if arguments["check"].(bool) {
		fmt.Println(conf.Filename(), "is valid")
		return
	}

	if err := run(conf, logger, arguments["--stdin"].(bool)); err != nil {
		logger.Crit("Proxy failed", "err", err)
		os.Exit(1)
	}
}

// newLogger logs to stderr in logfmt, filtered at the configured level.
func newLogger(conf *config.Config) log.Logger {
	lvl, err := log.LvlFromString(conf.LogLevel())
	if err != nil {
		lvl = log.LvlInfo
	}

	logger := log.Root()
	logger.SetHandler(log.LvlFilterHandler(lvl,
		log.StreamHandler(os.Stderr, log.LogfmtFormat())))
	if err != nil {
		logger.Warn("Unknown loglevel, using info", "loglevel", conf.LogLevel())
	}
	return logger
}

// run starts the proxy and does not return until it is told to stop, either
// by a signal, a line on stdin or every network dying.
func run(conf *config.Config, logger log.Logger, watchStdin bool) error {
	p, err := proxy.New(conf, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	end, err := p.Start(context.Background())
	if err != nil {
		return err
	}

	input, quit := make(chan struct{}), make(chan os.Signal, 2)
	if watchStdin {
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Scan()
			close(input)
		}()
	}
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	stop := false
	for !stop {
		select {
		case <-input:
			stop = true
		case sig := <-quit:
			logger.Info("Caught signal", "signal", sig)
			stop = true
		case err, ok := <-end:
			if ok {
				logger.Info("Network stopped", "err", err)
			}
			stop = !ok
		}
	}

	logger.Info("Shutting down...")
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Timed out waiting for connections to close")
	}
	return nil
}
