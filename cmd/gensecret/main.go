// Print random hex string suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretBytes = 32

func generate(r io.Reader, n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("secret of %d bytes is too weak, use 16 or more", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("error while generating secret key: %w", err)
	}

	return hex.EncodeToString(b), nil
}

func main() {
	fs := pflag.NewFlagSet("gensecret", pflag.ExitOnError)
	n := fs.IntP("bytes", "b", defaultSecretBytes, "Number of random bytes")
	_ = fs.Parse(os.Args[1:])

	secret, err := generate(rand.Reader, *n)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(secret)
}
