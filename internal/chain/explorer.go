package chain

import "fmt"

// LinkKind is the path segment of an explorer link.
type LinkKind string

const (
	LinkTx      LinkKind = "tx"
	LinkAddress LinkKind = "address"
	LinkToken   LinkKind = "token"
)

// ExplorerLink builds {baseUrl}/{tx|address|token}/{value}. It returns an
// empty string when the chain has no explorer configured.
func (p *NetworkProfile) ExplorerLink(kind LinkKind, value string) string {
	if p == nil || p.ExplorerURL == "" || value == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", p.ExplorerURL, kind, value)
}
