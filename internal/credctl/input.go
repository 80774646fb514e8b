package credctl

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/credengine/internal/secretx"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// GetPassword prints prompt to w and reads a password from the terminal
// without echo. The caller wipes the returned buffer.
func GetPassword(w io.Writer, prompt string) (*secretx.Buffer, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return secretx.New(pw), nil
}

// GetNewPassword asks twice and fails when the answers differ.
func GetNewPassword(w io.Writer) (*secretx.Buffer, error) {
	first, err := GetPassword(w, "New password")
	if err != nil {
		return nil, err
	}
	second, err := GetPassword(w, "Retype new password")
	if err != nil {
		first.Wipe()
		return nil, err
	}
	defer second.Wipe()

	if !first.Equal(second.Bytes()) {
		first.Wipe()
		return nil, errPasswordMismatch
	}
	return first, nil
}
