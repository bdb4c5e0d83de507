package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MaxNameLength is the longest section or entry name accepted
const MaxNameLength = 255

// ReservedSectionName is the INI section that holds keys outside any section
const ReservedSectionName = "DEFAULT"

// sensitiveNames mark a section or entry as holding a credential
var sensitiveNames = []string{
	"password", "secret", "key", "token", "auth", "credential",
	"private", "passphrase", "pin", "code", "signature",
}

// IsSensitiveName reports whether name looks like it holds a credential.
// Matching is a case-insensitive substring test, so "Database/Password"
// and "api_token" both match.
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Validator checks names and paths before they reach a storage backend
type Validator struct {
	uidPattern   *regexp.Regexp
	tokenPattern *regexp.Regexp

	// Patterns that indicate path traversal attempts
	pathTraversalPatterns []*regexp.Regexp
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		// Valid UID format: alphanumeric with underscores and hyphens, 16-32 characters
		uidPattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{16,32}$`),
		// Keeper one-time tokens carry a region prefix
		tokenPattern: regexp.MustCompile(`^(US|EU|AU|JP|CA|GOV):[A-Za-z0-9+/=_-]+$`),

		pathTraversalPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\.[\\/]`),         // ../ or ..\
			regexp.MustCompile(`%2e%2e|%252e%252e`), // URL encoded traversal
			regexp.MustCompile(`\x00`),              // Null bytes
		},
	}
}

// ValidateUID validates a Keeper record UID
func (v *Validator) ValidateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("UID cannot be empty")
	}

	if len(uid) < 16 || len(uid) > 32 {
		return fmt.Errorf("UID must be between 16 and 32 characters")
	}

	if !v.uidPattern.MatchString(uid) {
		return fmt.Errorf("invalid UID format: must contain only alphanumeric characters, underscores, and hyphens")
	}

	return nil
}

// ValidateToken validates a one-time access token of the form REGION:TOKEN
func (v *Validator) ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if !v.tokenPattern.MatchString(token) {
		return fmt.Errorf("invalid token format: expected format REGION:TOKEN (e.g., US:TOKEN_HERE)")
	}

	_, secret, _ := strings.Cut(token, ":")
	if len(secret) < 20 {
		return fmt.Errorf("token appears to be too short")
	}

	return nil
}

// ValidateSectionName checks that a section name can be written to any
// of the file formats: no brackets, no control or format characters.
func (v *Validator) ValidateSectionName(name string) error {
	if err := v.validateName("section", name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "[]") {
		return fmt.Errorf("section name %q cannot contain brackets", name)
	}
	// INI readers fold keys outside any section into DEFAULT
	if strings.EqualFold(name, ReservedSectionName) {
		return fmt.Errorf("section name %q is reserved", name)
	}
	return nil
}

// ValidateEntryName checks that an entry name can be written as a key in
// any of the file formats.
func (v *Validator) ValidateEntryName(name string) error {
	if err := v.validateName("entry", name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "=:") {
		return fmt.Errorf("entry name %q cannot contain '=' or ':'", name)
	}
	if strings.HasPrefix(name, ";") || strings.HasPrefix(name, "#") {
		return fmt.Errorf("entry name %q cannot start with a comment marker", name)
	}
	return nil
}

// ValidateFilePath validates a file path
func (v *Validator) ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Check for path traversal attempts
	if v.containsPathTraversal(path) {
		return fmt.Errorf("file path contains invalid characters or patterns")
	}

	if strings.ContainsAny(path, "\n\r") {
		return fmt.Errorf("file path contains line breaks")
	}

	// Ensure it's not trying to access parent directories
	if strings.HasPrefix(filepath.Clean(path), "..") {
		return fmt.Errorf("file path cannot traverse to parent directories")
	}

	return nil
}

func (v *Validator) validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%s name %q has surrounding whitespace", kind, name)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s name too long: maximum %d characters", kind, MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return fmt.Errorf("%s name %q contains control or format characters", kind, name)
		}
	}
	return nil
}

// containsPathTraversal checks if input contains path traversal patterns
func (v *Validator) containsPathTraversal(input string) bool {
	for _, pattern := range v.pathTraversalPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
