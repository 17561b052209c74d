// Command palisade is a small operator tool built on the guarded-memory
// library: key generation, password-based file sealing, and secure file
// wiping. It disables core dumps for itself before touching any secret.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Quiet-Harbor/Palisade/pkg/crypt"
	"github.com/Quiet-Harbor/Palisade/pkg/entropy"
	"github.com/Quiet-Harbor/Palisade/pkg/guard"
	"github.com/Quiet-Harbor/Palisade/pkg/harden"
	"github.com/Quiet-Harbor/Palisade/pkg/secutil"
)

// sealedExt is appended to sealed file names and stripped on open.
const sealedExt = ".sealed"

var rootCmd = &cobra.Command{
	Use:   "palisade",
	Short: "Guarded-memory secret tooling",
	Long: `palisade keeps secrets in guarded memory while it works with them:
keys are generated straight into mlock'd, dump-excluded regions, and
password-derived keys never touch the Go heap unwiped.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := harden.DisableCoreDumps(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a 32-byte key and print it as hex",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := entropy.Key(guard.StartUnlocked())
		if err != nil {
			return err
		}
		defer key.Destroy()

		hexKey, err := key.Hex()
		if err != nil {
			return err
		}
		fmt.Println(hexKey)
		return nil
	},
}

var randCmd = &cobra.Command{
	Use:   "rand N",
	Short: "Generate N random bytes and print them as hex",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("byte count must be a positive integer, got %q", args[0])
		}

		b, err := entropy.Bytes(n, guard.StartUnlocked())
		if err != nil {
			return err
		}
		defer b.Destroy()

		hexBytes, err := b.Hex()
		if err != nil {
			return err
		}
		fmt.Println(hexBytes)
		return nil
	},
}

var sealCmd = &cobra.Command{
	Use:   "seal FILE",
	Short: "Encrypt a file under a passphrase-derived key",
	Long: `seal reads FILE, derives a key from a prompted passphrase with
Argon2id, encrypts the contents with XChaCha20-Poly1305, and writes
FILE` + sealedExt + ` as salt followed by the sealed blob. The plaintext
read from disk is wiped from memory before the command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		plaintext, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		defer guard.Wipe(plaintext)

		password, err := promptPassword("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm passphrase: ")
		if err != nil {
			guard.Wipe(password)
			return err
		}
		same, err := secutil.Compare(password, confirm)
		guard.Wipe(confirm)
		if err != nil || !same {
			guard.Wipe(password)
			return fmt.Errorf("passphrases do not match")
		}

		salt, err := crypt.NewSalt()
		if err != nil {
			guard.Wipe(password)
			return err
		}
		key, err := crypt.PasswordKey(password, salt) // wipes password
		if err != nil {
			return err
		}
		defer key.Destroy()
		key.Unlock()

		blob, err := crypt.Seal(key, plaintext, []byte("palisade.file.v1"))
		if err != nil {
			return err
		}

		out := append(salt, blob...)
		if err := os.WriteFile(path+sealedExt, out, 0600); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "sealed %s -> %s%s\n", path, path, sealedExt)
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open FILE",
	Short: "Decrypt a sealed file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if len(raw) < crypt.SaltSize {
			return fmt.Errorf("%s is too short to be a sealed file", args[0])
		}
		salt, blob := raw[:crypt.SaltSize], raw[crypt.SaltSize:]

		password, err := promptPassword("Passphrase: ")
		if err != nil {
			return err
		}
		key, err := crypt.PasswordKey(password, salt) // wipes password
		if err != nil {
			return err
		}
		defer key.Destroy()
		key.Unlock()

		opened, err := crypt.Open(key, blob, []byte("palisade.file.v1"))
		if err != nil {
			return err
		}
		defer opened.Destroy()
		opened.Unlock()

		plaintext, err := opened.Bytes()
		if err != nil {
			return err
		}
		defer guard.Wipe(plaintext)

		_, err = os.Stdout.Write(plaintext)
		return err
	},
}

var wipeCmd = &cobra.Command{
	Use:   "wipe FILE",
	Short: "Overwrite a file with zeros, then remove it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}

		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		zeros := make([]byte, info.Size())
		if _, err := f.Write(zeros); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		return os.Remove(path)
	},
}

// promptPassword reads a passphrase without echo, falling back to a plain
// line read when stdin is not a terminal (pipes in scripts and tests).
func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		defer fmt.Fprintln(os.Stderr)
		return term.ReadPassword(fd)
	}

	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			line.WriteByte(buf[0])
		}
		if err != nil {
			break
		}
	}
	return []byte(line.String()), nil
}

func main() {
	rootCmd.AddCommand(keygenCmd, randCmd, sealCmd, openCmd, wipeCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
