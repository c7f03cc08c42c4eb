// Package roster holds teachers' classes and students and lets students
// sign in with a class code and a personal student code.
package roster

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidCode covers every login miss so callers cannot tell which
	// code was wrong.
	ErrInvalidCode = errors.New("invalid class or student code")
	ErrNotFound    = errors.New("not found")
	ErrInvalidName = errors.New("name is required")
)

// Class is a teacher's class with the code students use to sign in.
type Class struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacherId"`
	Name      string    `json:"name"`
	ClassCode string    `json:"classCode"`
	CreatedAt time.Time `json:"createdAt"`
}

// Student belongs to one class.
type Student struct {
	ID          string `json:"id"`
	ClassID     string `json:"classId"`
	Name        string `json:"name"`
	Number      string `json:"number,omitempty"`
	StudentCode string `json:"studentCode"`
}

// StudentInput is a student to add to a class.
type StudentInput struct {
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

var upper = cases.Upper(language.Und)

// NormalizeCode canonicalises a typed code: trimmed, NFC, upper-cased
// without locale rules so "i" maps to "I".
func NormalizeCode(code string) string {
	return upper.String(norm.NFC.String(strings.TrimSpace(code)))
}

// CleanName trims and NFC-normalises a display name.
func CleanName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// Codes avoid look-alike characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random code of length n.
func GenerateCode(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
