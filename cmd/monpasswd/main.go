// Command monpasswd manages credentials for monitor configuration files.
// It generates secrets key files and encrypts plaintext passwords into the
// stored form monitors decrypt at probe time.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/edvin/proxymon/internal/secrets"
)

func main() {
	genKey := flag.Bool("genkey", false, "generate a new key file instead of encrypting")
	keyFile := flag.String("keyfile", os.Getenv("SECRETS_KEY_FILE"), "path to the secrets key file")
	flag.Usage = usage
	flag.Parse()

	if *genKey {
		if err := writeKeyFile(*keyFile); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if *keyFile == "" || flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	svc, err := secrets.NewService(*keyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	stored, err := svc.Encrypt(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(stored)
}

func writeKeyFile(path string) error {
	if path == "" {
		return fmt.Errorf("-keyfile is required")
	}
	key, err := secrets.GenerateKey()
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write key file %s: %w", path, err)
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  monpasswd -keyfile <path> <password>    encrypt a password for storage
  monpasswd -genkey -keyfile <path>       generate a new key file
`)
	flag.PrintDefaults()
}
