package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/howeyc/gopass"
	"golang.org/x/crypto/ssh"
)

// ReadPrivateKey attempts to read your private key and possibly decrypt it if it
// requires a passphrase.
// This function will prompt for a passphrase on STDIN if the environment variable (`IDENTITY_PASSPHRASE`),
// is not set.
func ReadPrivateKey(path string) (ssh.Signer, error) {
	privateKey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	pk, err := ssh.ParsePrivateKey(privateKey)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return pk, err
	}

	passphrase := []byte(os.Getenv("IDENTITY_PASSPHRASE"))
	if len(passphrase) == 0 {
		fmt.Print("Enter passphrase: ")
		passphrase, err = gopass.GetPasswd()
		if err != nil {
			return nil, fmt.Errorf("couldn't read passphrase: %w", err)
		}
	}
	return ssh.ParsePrivateKeyWithPassphrase(privateKey, passphrase)
}
