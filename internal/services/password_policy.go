package services

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPasswordBytes is the most bcrypt will hash.
const MaxPasswordBytes = 72

type PasswordPolicy struct {
	// MinLength считается в символах, MaxLength в байтах (не больше MaxPasswordBytes)
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// флаги ниже ослабляют политику, по умолчанию всё запрещено
	AllowNumeric      bool
	AllowCommon       bool
	AllowEmailSimilar bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: 8,
		MaxLength: MaxPasswordBytes,
	}
}

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "passw0rd", "p@ssw0rd",
		"12345678", "123456789", "1234567890", "87654321", "11111111",
		"qwerty", "qwerty123", "qwertyuiop", "1q2w3e4r", "1qaz2wsx",
		"abc12345", "abcdefgh", "iloveyou", "sunshine", "princess",
		"football", "baseball", "welcome1", "welcome123", "letmein1",
		"admin123", "administrator", "monkey123", "dragon123", "master123",
		"trustno1", "superman", "starwars", "whatever", "changeme",
	} {
		commonPasswords[p] = struct{}{}
	}
}

// Validate collects every violated rule into one ValidationError.
func (p PasswordPolicy) Validate(password, email string) error {
	var problems []string

	length := utf8.RuneCountInString(password)
	if p.MinLength > 0 && length < p.MinLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	maxBytes := p.MaxLength
	if maxBytes <= 0 || maxBytes > MaxPasswordBytes {
		maxBytes = MaxPasswordBytes
	}
	if len(password) > maxBytes {
		problems = append(problems, fmt.Sprintf("must be at most %d bytes", maxBytes))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	allDigits := length > 0
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}

	if p.RequireUpper && !hasUpper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, "must contain a digit")
	}
	if p.RequireSymbol && !hasSymbol {
		problems = append(problems, "must contain a symbol")
	}
	if !p.AllowNumeric && allDigits {
		problems = append(problems, "must not be entirely numeric")
	}
	if !p.AllowCommon {
		if _, common := commonPasswords[strings.ToLower(password)]; common {
			problems = append(problems, "is too common")
		}
	}
	if !p.AllowEmailSimilar && similarToEmail(password, email) {
		problems = append(problems, "is too similar to the email")
	}

	if len(problems) == 0 {
		return nil
	}
	msg := "password " + strings.Join(problems, "; ")
	return newValidationError(msg, map[string]string{"password": strings.Join(problems, "; ")})
}

func similarToEmail(password, email string) bool {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	if utf8.RuneCountInString(local) < 3 {
		return false
	}
	return strings.Contains(strings.ToLower(password), local)
}
