package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

// Prints a pair of independent signing keys, ready to paste into .env
func main() {
	keys := map[string]string{}

	for _, name := range []string{"ACCESS_SECRET_KEY", "REFRESH_SECRET_KEY"} {
		b := make([]byte, SecretKeyBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}

		keys[name] = hex.EncodeToString(b)
	}

	fmt.Printf("ACCESS_SECRET_KEY=%s\n", keys["ACCESS_SECRET_KEY"])
	fmt.Printf("REFRESH_SECRET_KEY=%s\n", keys["REFRESH_SECRET_KEY"])
}
