package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/jelmer/ctrlproxy-sub000/config"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var usage = `ctrlpasswd.
Hashes a password for the listener or a user of the ctrlproxy config, or
checks a password against one that is configured.
Usage:
	ctrlpasswd [--cost <cost>]
	ctrlpasswd verify [--conf <filename>] [--user <name>]
	ctrlpasswd -h | --help
Options:
	--cost <cost>      bcrypt cost [default: 10].
	--conf <filename>  Configuration file to use [default: config.toml].
	--user <name>      Check the password of this user, not the listener's.
	-h --help          Show this screen.`

func main() {
	arguments, _ := docopt.ParseArgs(usage, nil, "")

	password, err := readPassword(!arguments["verify"].(bool))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if arguments["verify"].(bool) {
		name, _ := arguments["--user"].(string)
		f, err := os.Open(arguments["--conf"].(string))
		if err != nil {
			fmt.Println("failed to open file:", err)
			os.Exit(1)
		}
		defer f.Close()

		if err = verify(f, name, password); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("password matches")
		return
	}

	cost, err := strconv.Atoi(arguments["--cost"].(string))
	if err != nil {
		fmt.Println("cost must be a number")
		os.Exit(1)
	}
	hash, err := generateHash(password, cost)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

// readPassword asks for the password on a terminal, twice when confirm is
// set, and reads a single line otherwise.
func readPassword(confirm bool) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}

	fmt.Print("Enter Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Print("\n")
	if err != nil || !confirm {
		return string(password), err
	}

	fmt.Print("Reenter Password: ")
	again, err := term.ReadPassword(fd)
	fmt.Print("\n")
	if err != nil {
		return "", err
	}
	if string(again) != string(password) {
		return "", errors.New("passwords do not match")
	}
	return string(password), nil
}

func readLine(reader io.Reader) (string, error) {
	text, err := bufio.NewReader(reader).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}

func generateHash(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("must provide a password to hash")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("cost must be between %d and %d",
			bcrypt.MinCost, bcrypt.MaxCost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// verify checks password against the hash configured for the user called
// name, or the listener's when name is empty.
func verify(reader io.Reader, name, password string) error {
	hash, err := loadHashFromConfig(reader, name)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return errors.New("password does not match")
	}
	return nil
}

func loadHashFromConfig(reader io.Reader, name string) (string, error) {
	cfg := config.New().FromReader(reader)
	if errs := cfg.Validate(); len(errs) > 0 {
		return "", errors.New(concatErrors(errs))
	}

	if len(name) > 0 {
		for _, u := range cfg.Users() {
			if u.Name == name {
				if len(u.Password) == 0 {
					return "", fmt.Errorf("user %s has no password", name)
				}
				return u.Password, nil
			}
		}
		return "", fmt.Errorf("no user named %s in the configuration", name)
	}

	l, ok := cfg.Listener()
	if !ok || len(l.Password) == 0 {
		return "", errors.New("must set a password in [listener]")
	}
	return l.Password, nil
}

func concatErrors(errs []error) string {
	strs := make([]string, len(errs))
	for i, e := range errs {
		strs[i] = e.Error()
	}
	return strings.Join(strs, "\n")
}
