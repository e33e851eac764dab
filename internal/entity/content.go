package entity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

const MaxSubjectLength = 120

// ContentBundle é o documento persistido em prospects.content.
type ContentBundle struct {
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	LandingHeadline string `json:"landing_headline"`
	LandingBody     string `json:"landing_body"`
}

// Validate apara espaços, corta o assunto e exige os quatro campos.
func (c *ContentBundle) Validate() error {
	c.Subject = strings.TrimSpace(c.Subject)
	c.Body = strings.TrimSpace(c.Body)
	c.LandingHeadline = strings.TrimSpace(c.LandingHeadline)
	c.LandingBody = strings.TrimSpace(c.LandingBody)

	if r := []rune(c.Subject); len(r) > MaxSubjectLength {
		c.Subject = strings.TrimSpace(string(r[:MaxSubjectLength]))
	}

	switch {
	case c.Subject == "":
		return errors.New("subject is required")
	case c.Body == "":
		return errors.New("body is required")
	case c.LandingHeadline == "":
		return errors.New("landing headline is required")
	case c.LandingBody == "":
		return errors.New("landing body is required")
	}
	return nil
}

// NewAccessToken gera 16 bytes aleatórios codificados em base64 URL-safe.
func NewAccessToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
