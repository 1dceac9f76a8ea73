package classify

import (
	"errors"
	"net/mail"
	"strings"
)

var errNoAddress = errors.New("no sender address")

// SenderAddress extracts the lower-cased mailbox address from a From header.
// Display names are discarded.
func SenderAddress(from string) (string, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", errNoAddress
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address), nil
	}
	if list, err := mail.ParseAddressList(from); err == nil && len(list) > 0 {
		return strings.ToLower(list[0].Address), nil
	}

	// Loose fallback for headers net/mail rejects, e.g. unquoted commas in the display name.
	if i := strings.LastIndexByte(from, '<'); i >= 0 {
		if j := strings.IndexByte(from[i:], '>'); j > 0 {
			from = from[i+1 : i+j]
		}
	}
	from = strings.ToLower(strings.TrimSpace(from))
	if strings.Count(from, "@") != 1 || strings.ContainsAny(from, " \t<>,;\"") {
		return "", errNoAddress
	}
	return from, nil
}

// SenderDomain returns the domain part of the sender mailbox.
func SenderDomain(from string) (string, error) {
	addr, err := SenderAddress(from)
	if err != nil {
		return "", err
	}
	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return "", errNoAddress
	}
	return normalizeDomain(addr[at+1:]), nil
}

// ListID extracts the identifier from a List-Id header value, which may be
// either bare or wrapped as `Description <list.id.example>`.
func ListID(header string) string {
	header = strings.TrimSpace(header)
	if i := strings.LastIndexByte(header, '<'); i >= 0 {
		if j := strings.IndexByte(header[i:], '>'); j > 0 {
			header = header[i+1 : i+j]
		}
	}
	return strings.ToLower(strings.TrimSpace(header))
}

// domainMatches reports whether domain equals allowed or is a subdomain of it.
func domainMatches(domain, allowed string) bool {
	return domain == allowed || strings.HasSuffix(domain, "."+allowed)
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}
