package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

// promptLine reads one non-empty line from stdin.
func promptLine(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return line, nil
		}
	}
}

// promptPasswordVerified reads a password twice and retries until both
// entries match and contain only ASCII characters.
func promptPasswordVerified(label string) (string, error) {
	for {
		password, err := promptLine(label)
		if err != nil {
			return "", err
		}
		if !isASCII(password) {
			fmt.Println("Only ASCII characters are allowed")
			continue
		}

		verify, err := promptLine("Verify")
		if err != nil {
			return "", err
		}
		if password == verify {
			return password, nil
		}
		fmt.Println("Passwords do not match")
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
