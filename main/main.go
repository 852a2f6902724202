package main

import (
	"errors"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		os.Exit(1)
	}
}
