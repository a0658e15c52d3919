package netconf

import (
	"fmt"
	"os"

	"github.com/miekg/dns"
)

// WriteResolvConf builds /etc/resolv.conf from a nameserver list using
// miekg/dns's ClientConfig representation and marshalClientConfig. The
// nameserver entries are written as given; they are not validated or
// parsed back before the file reaches /etc.
func WriteResolvConf(nameservers []string) error {
	cfg := &dns.ClientConfig{
		Servers: nameservers,
		Ndots:   1,
		Timeout: 5,
		Attempts: 2,
	}
	content := marshalClientConfig(cfg)
	if err := os.WriteFile("/etc/resolv.conf", []byte(content), 0644); err != nil {
		return fmt.Errorf("netconf: write resolv.conf: %w", err)
	}
	return nil
}

// marshalClientConfig renders a dns.ClientConfig in the standard
// resolv.conf textual form; dns.ClientConfig has no built-in writer, only a
// reader. It writes the nameserver lines and, when non-zero, the ndots
// option; other fields (Timeout, Attempts, Search, Port) are not written.
func marshalClientConfig(cfg *dns.ClientConfig) string {
	out := ""
	for _, s := range cfg.Servers {
		out += fmt.Sprintf("nameserver %s\n", s)
	}
	if cfg.Ndots > 0 {
		out += fmt.Sprintf("options ndots:%d\n", cfg.Ndots)
	}
	return out
}
