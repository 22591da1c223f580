package ippool

import (
	"fmt"

	"github.com/gridmarket/backend/internal/domain/shared"
)

// PublicIP is one routable IPv4 address in a provider's pool. ContractID is
// zero while the address is free and holds the reserving contract otherwise.
type PublicIP struct {
	Address    string `json:"address"` // CIDR notation, e.g. 185.69.166.12/24
	Gateway    string `json:"gateway"`
	ContractID uint64 `json:"contract_id"`
}

// Free reports whether the address is unreserved.
func (ip PublicIP) Free() bool {
	return ip.ContractID == 0
}

// Pool is a provider's ordered list of public IPs. Reservation scans from the
// start so addresses are handed out deterministically.
type Pool struct {
	IPs []PublicIP
}

// FreeCount returns the number of unreserved addresses.
func (p Pool) FreeCount() uint32 {
	var n uint32
	for _, ip := range p.IPs {
		if ip.Free() {
			n++
		}
	}
	return n
}

// Reserve marks count free addresses as held by contractID and returns them.
// All-or-nothing: if fewer than count addresses are free, or the contract
// already holds an address in this pool, the pool is left unchanged.
func (p *Pool) Reserve(contractID uint64, count uint32) ([]PublicIP, error) {
	if count == 0 {
		return nil, nil
	}
	for _, ip := range p.IPs {
		if ip.ContractID == contractID {
			return nil, shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("contract %d already holds ip %s", contractID, ip.Address))
		}
	}
	if p.FreeCount() < count {
		return nil, shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("pool has %d free ips, %d requested", p.FreeCount(), count))
	}

	reserved := make([]PublicIP, 0, count)
	for i := range p.IPs {
		if !p.IPs[i].Free() {
			continue
		}
		p.IPs[i].ContractID = contractID
		reserved = append(reserved, p.IPs[i])
		if uint32(len(reserved)) == count {
			break
		}
	}
	if uint32(len(reserved)) != count {
		// the pre-check above guarantees enough free slots
		return nil, shared.NewDomainError(shared.CodeInvariant, "ip pool scan lost addresses mid-reserve")
	}
	return reserved, nil
}

// Release frees every address held by contractID and returns the freed
// addresses. Idempotent: releasing a contract that holds nothing is a no-op.
func (p *Pool) Release(contractID uint64) []PublicIP {
	if contractID == 0 {
		return nil
	}
	var freed []PublicIP
	for i := range p.IPs {
		if p.IPs[i].ContractID == contractID {
			p.IPs[i].ContractID = 0
			freed = append(freed, p.IPs[i])
		}
	}
	return freed
}
