// Package importer maps loosely-typed rows from password-manager CSV exports
// onto the canonical Account shape.
package importer

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"golang.org/x/net/publicsuffix"
)

// Column precedence, most specific first.
var (
	nameColumns     = []string{"url", "service", "title", "name", "website"}
	usernameColumns = []string{"username", "login", "email", "user", "id"}
)

// Columns whose name contains one of these fragments are secrets and are
// dropped before mapping.
var secretFragments = []string{"password", "passwd", "passphrase", "secret", "token", "apikey", "privatekey"}

// Columns dropped when the whole (normalized) name matches.
var secretColumns = map[string]struct{}{
	"pass": {}, "pwd": {}, "pin": {}, "otp": {}, "totp": {}, "cvv": {}, "cvc": {}, "key": {}, "mfa": {},
}

// RowStatus is the outcome for one input row.
type RowStatus string

const (
	RowAccepted  RowStatus = "accepted"
	RowRejected  RowStatus = "rejected"
	RowCreated   RowStatus = "created"
	RowDuplicate RowStatus = "duplicate"
)

// RowResult reports what happened to the row at Index.
type RowResult struct {
	Index   int             `json:"index"`
	Status  RowStatus       `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Account *models.Account `json:"account,omitempty"`
}

// Sanitize maps every row independently. A row without a usable name is
// rejected; it never aborts the batch. Accepted accounts carry no owner, no
// notes and no categories.
func Sanitize(rows []map[string]any) []RowResult {
	out := make([]RowResult, 0, len(rows))
	for i, row := range rows {
		out = append(out, sanitizeRow(i, row))
	}
	return out
}

func sanitizeRow(index int, row map[string]any) RowResult {
	if row == nil {
		return RowResult{Index: index, Status: RowRejected, Reason: "row must be an object"}
	}

	fields := normalizeKeys(row)

	name, ok := firstValue(fields, nameColumns)
	if !ok {
		return RowResult{Index: index, Status: RowRejected, Reason: "no usable name column"}
	}
	name = NormalizeName(name)
	if name == "" {
		return RowResult{Index: index, Status: RowRejected, Reason: "name is empty after normalization"}
	}

	account := &models.Account{Name: name, Categories: []string{}}
	if username, ok := firstValue(fields, usernameColumns); ok {
		account.Username = &username
	}

	return RowResult{Index: index, Status: RowAccepted, Account: account}
}

// normalizeKeys lower-cases and trims keys and drops secret columns. On a
// key collision a key that was already normalized wins, then the
// lexically smaller raw key.
func normalizeKeys(row map[string]any) map[string]string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareRawKeys)

	fields := make(map[string]string, len(row))
	for _, k := range keys {
		v := row[k]
		key := normalizeKey(k)
		if isSecretColumn(key) {
			continue
		}
		s, ok := stringify(v)
		if !ok {
			continue
		}
		if prev := fields[key]; prev != "" {
			continue
		}
		fields[key] = s
	}
	return fields
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func compareRawKeys(a, b string) int {
	aExact, bExact := a == normalizeKey(a), b == normalizeKey(b)
	switch {
	case aExact && !bExact:
		return -1
	case bExact && !aExact:
		return 1
	}
	return strings.Compare(a, b)
}

func isSecretColumn(key string) bool {
	compact := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, key)
	if _, ok := secretColumns[compact]; ok {
		return true
	}
	for _, f := range secretFragments {
		if strings.Contains(compact, f) {
			return true
		}
	}
	return false
}

func stringify(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int, int64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func firstValue(fields map[string]string, columns []string) (string, bool) {
	for _, c := range columns {
		if v := fields[c]; v != "" {
			return v, true
		}
	}
	return "", false
}

// NormalizeName turns a URL-shaped name into its service label and trims
// anything else:
//
//	https://www.example.com/path -> example
//	mail.google.co.uk            -> google
//	GitHub                       -> GitHub
//
// IP hosts are kept as is and non-web schemes are left untouched.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	host, ok := hostOf(name)
	if !ok {
		return name
	}
	if net.ParseIP(host) != nil {
		return host
	}

	host = strings.TrimPrefix(host, "www.")
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = etld1
	}
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return name
	}
	return label
}

// hostOf returns the lower-cased host of s when s looks like a URL or a bare
// domain name.
func hostOf(s string) (string, bool) {
	if strings.ContainsAny(s, " \t") {
		return "", false
	}
	candidate := s
	if !strings.Contains(s, "://") {
		if !looksLikeDomain(s) {
			return "", false
		}
		candidate = "https://" + s
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

func looksLikeDomain(s string) bool {
	host, _, _ := strings.Cut(s, "/")
	dot := strings.LastIndex(host, ".")
	if dot <= 0 || dot == len(host)-1 {
		return false
	}
	tld := host[dot+1:]
	for _, r := range tld {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(tld) >= 2
}
