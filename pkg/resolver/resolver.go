package resolver

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/rs/zerolog/log"
)

// Source records where the target address came from. The change log keeps
// this tag alongside every recorded address.
type Source string

const (
	SourceManual   Source = "manual"
	SourceExternal Source = "external"
)

// AddressNone is the sentinel meaning "delete all rules, create none".
const AddressNone = "none"

// Address is a resolved target address together with its origin.
type Address struct {
	IP     string
	Source Source
}

// ValidateAddress checks that s is the sentinel "none" or a plain dotted
// quad A.B.C.D. The unspecified address is rejected outright so the tool can
// never be talked into authorizing the whole world.
func ValidateAddress(s string) error {
	if s == AddressNone {
		return nil
	}
	if s == "0.0.0.0" || s == "0.0.0.0/32" {
		return fmt.Errorf("refusing address %q: this would allow traffic from anywhere", s)
	}

	groups := strings.Split(s, ".")
	if len(groups) != 4 {
		return fmt.Errorf("invalid IPv4 address %q", s)
	}
	for _, group := range groups {
		if group == "" {
			return fmt.Errorf("invalid IPv4 address %q", s)
		}
		for _, c := range group {
			if c < '0' || c > '9' {
				return fmt.Errorf("invalid IPv4 address %q", s)
			}
		}
		n, err := strconv.Atoi(group)
		if err != nil || n > 255 {
			return fmt.Errorf("invalid IPv4 address %q", s)
		}
	}
	return nil
}

// Resolve produces the address to authorize. A non-empty explicit argument
// wins and is tagged manual; otherwise the public address is discovered with
// a STUN binding request and tagged external. There is no fallback: if the
// STUN query fails the run fails, never silently reusing a stale address.
func Resolve(explicit, stunServer string, stunPort int) (Address, error) {
	if explicit != "" {
		if err := ValidateAddress(explicit); err != nil {
			return Address{}, err
		}
		return Address{IP: explicit, Source: SourceManual}, nil
	}

	ip, err := stunQuery(stunServer, stunPort)
	if err != nil {
		return Address{}, fmt.Errorf("failed to determine public address via STUN: %w", err)
	}

	log.Debug().Msgf("STUN server %s:%d reports mapped address %s", stunServer, stunPort, ip)
	return Address{IP: ip, Source: SourceExternal}, nil
}

func stunQuery(server string, port int) (string, error) {
	client, err := stun.Dial("udp4", net.JoinHostPort(server, strconv.Itoa(port)))
	if err != nil {
		return "", err
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	var ip net.IP
	var queryErr error
	err = client.Do(message, func(event stun.Event) {
		if event.Error != nil {
			queryErr = event.Error
			return
		}

		var xorAddr stun.XORMappedAddress
		if getErr := xorAddr.GetFrom(event.Message); getErr == nil {
			ip = xorAddr.IP
			return
		}

		// Pre-RFC5389 servers only send the plain mapped address.
		var mapped stun.MappedAddress
		if getErr := mapped.GetFrom(event.Message); getErr != nil {
			queryErr = fmt.Errorf("no mapped address in STUN response: %w", getErr)
			return
		}
		ip = mapped.IP
	})
	if err != nil {
		return "", err
	}
	if queryErr != nil {
		return "", queryErr
	}

	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("STUN mapped address %s is not IPv4", ip)
	}
	return v4.String(), nil
}
