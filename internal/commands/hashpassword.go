package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/klabast/wb-services/signup-calendar/internal/app"
)

func newHashPasswordCmd(o *rootOptions) *cobra.Command {
	var overwrite, insecureUnmask bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Create the operator auth file (Argon2id)",
		Long: `Creates an auth.secret file with a hashed operator password (Argon2id).

The file location is AUTH_FILE / auth_file, or auth.secret next to the binary.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipStorageCheck: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.ResolveAuthFile(o.cfg.AuthFile)
			if err != nil {
				return err
			}

			in, out := cmd.InOrStdin(), cmd.OutOrStdout()

			// Prompt for username
			fmt.Fprint(out, "Enter username: ")
			var username string
			if _, err := fmt.Fscanln(in, &username); err != nil {
				return fmt.Errorf("error reading username: %w", err)
			}
			if username == "" {
				return errors.New("username cannot be empty")
			}

			var password, passwordConfirm string
			if insecureUnmask {
				// Plain text mode (insecure!)
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: Password will be visible on screen!")
				fmt.Fprint(out, "Enter password:   ")
				if _, err := fmt.Fscanln(in, &password); err != nil {
					return fmt.Errorf("error reading password: %w", err)
				}
				fmt.Fprint(out, "Confirm password: ")
				if _, err := fmt.Fscanln(in, &passwordConfirm); err != nil {
					return fmt.Errorf("error reading password confirmation: %w", err)
				}
			} else {
				password = readPasswordWithMask("Enter password:   ")
				passwordConfirm = readPasswordWithMask("Confirm password: ")
			}

			if password == "" {
				return errors.New("password cannot be empty")
			}
			if password != passwordConfirm {
				return errors.New("passwords do not match")
			}
			return app.CreateAuthFile(path, username, password, overwrite)
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing auth file without asking")
	cmd.Flags().BoolVar(&insecureUnmask, "insecure-unmask-password", false, "Show password as plain text (INSECURE!)")
	return cmd
}

// readPasswordWithMask reads password input and displays asterisks
func readPasswordWithMask(prompt string) string {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Fallback to hidden input if we can't set raw mode
		password, _ := term.ReadPassword(fd)
		fmt.Println()
		return string(password)
	}
	defer term.Restore(fd, oldState)

	var password []byte
	reader := bufio.NewReader(os.Stdin)

	for {
		char, _, err := reader.ReadRune()
		if err != nil {
			break
		}

		switch char {
		case '\n', '\r': // Enter key
			fmt.Print("\r\n")
			return string(password)
		case 127, 8: // Backspace or Delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				// Clear the asterisk: backspace, space, backspace
				fmt.Print("\b \b")
			}
		case 3: // Ctrl+C
			term.Restore(fd, oldState)
			fmt.Println()
			os.Exit(1)
		default:
			// Only accept printable characters
			if char >= 32 && char <= 126 {
				password = append(password, byte(char))
				fmt.Print("*")
			}
		}
	}

	fmt.Print("\r\n")
	return string(password)
}
