// Command hashpw prints the argon2id hash of a password, in the format the
// users table expects, so accounts can be seeded by hand.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muneebhashone/gqlauth/internal/cryptox"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, prompt io.Writer) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hashpw",
		Short: "Hash a password for the users table",
		Long: `hashpw prompts for a password twice without echo and prints its
argon2id hash. With --stdin the first line of standard input is used instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				pw  []byte
				err error
			)
			if fromStdin {
				pw, err = readLine(in)
			} else {
				pw, err = promptTwice(prompt)
			}
			if err != nil {
				return err
			}
			if len(pw) == 0 {
				return errors.New("empty password")
			}

			hash, err := cryptox.HashPassword(string(pw))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, hash)
			return err
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from standard input")
	return cmd
}

func readLine(in io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func promptTwice(w io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(w, "Repeat: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	if string(first) != string(second) {
		return nil, errors.New("passwords do not match")
	}
	return first, nil
}
