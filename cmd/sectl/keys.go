package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"signescrow/crypto"
	"signescrow/rpc"
)

// keyFlags selects the signing key for a command.
type keyFlags struct {
	hex      string
	env      string
	keystore string
}

func (k *keyFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&k.hex, "key", "", "hex private key")
	fs.StringVar(&k.env, "key-env", "", "environment variable holding a hex private key")
	fs.StringVar(&k.keystore, "keystore", "", "path to an encrypted keystore (passphrase from "+passphraseEnv+" or the terminal)")
}

func (k *keyFlags) load() (*crypto.PrivateKey, error) {
	switch {
	case k.hex != "":
		return crypto.PrivateKeyFromHex(k.hex)
	case k.env != "":
		value := strings.TrimSpace(os.Getenv(k.env))
		if value == "" {
			return nil, fmt.Errorf("%s is empty", k.env)
		}
		return crypto.PrivateKeyFromHex(value)
	case k.keystore != "":
		pass, err := crypto.PassphraseSource{Env: passphraseEnv}.Read(k.keystore)
		if err != nil {
			return nil, err
		}
		return crypto.LoadFromKeystore(k.keystore, pass)
	default:
		return nil, errors.New("one of --key, --key-env or --keystore is required")
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runKeygen(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("keygen", stderr)
	path := fs.String("keystore", "", "write the key to an encrypted keystore instead of printing it")
	scrypt := fs.String("scrypt", string(crypto.ScryptLight), "keystore scrypt strength: light or standard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	strength, err := crypto.ParseScryptStrength(*scrypt)
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if *path == "" {
		fmt.Fprintf(stdout, "address: %s\nprivate: %s\n", key.Principal(), hex.EncodeToString(key.Bytes()))
		return nil
	}
	pass, err := crypto.PassphraseSource{Env: passphraseEnv}.Read(*path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(pass) == "" {
		return errors.New("keystore passphrase cannot be empty")
	}
	if err := crypto.SaveToKeystoreWith(*path, key, pass, strength); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "address: %s\nkeystore: %s\n", key.Principal(), *path)
	return nil
}

func runAddress(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("address", stderr)
	var keys keyFlags
	keys.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, key.Principal())
	return nil
}

func runToken(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("token", stderr)
	secretEnv := fs.String("secret-env", "SIGNESCROW_JWT_SECRET", "environment variable holding the HS256 secret")
	issuer := fs.String("issuer", "signescrow", "token issuer")
	subject := fs.String("subject", "", "token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		return errors.New("--subject is required")
	}
	token, err := rpc.IssueToken(os.Getenv(*secretEnv), *issuer, *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
