// Package receipt recovers the address of a newly created contract from a
// confirmed transaction receipt.
package receipt

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/lo"
	"github.com/yolodolo42/deployfi/internal/failure"
)

// Source names the strategy that produced an address. Sources are ordered by
// priority: a lower value is tried first and is more trustworthy.
type Source int

const (
	SourceDecodedEvent Source = iota + 1
	SourceEventScan
	SourceNonFactoryLog
	SourceTopicScan
	SourceReturnData
	SourceReceiptContract
)

var sourceNames = map[Source]string{
	SourceDecodedEvent:    "decoded_event",
	SourceEventScan:       "event_scan",
	SourceNonFactoryLog:   "non_factory_log",
	SourceTopicScan:       "topic_scan",
	SourceReturnData:      "return_data",
	SourceReceiptContract: "receipt_contract",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// Confidence is the ordinal matching the source's priority, highest for the
// decoded event.
func (s Source) Confidence() int {
	return int(SourceReceiptContract) - int(s) + 1
}

// Address is an extracted contract address.
type Address struct {
	Value      common.Address
	Source     Source
	Confidence int
}

// Field names that identify the created contract inside a creation event.
var createdFields = []string{"token", "tokenAddress", "pool", "instance"}

var errTopicCount = errors.New("topic count does not match event")

// creationEventNames are accepted by the heuristic scan.
var creationEventNames = []string{"TokenCreated", "TokenDeployed", "PoolCreated"}

// Input is everything the cascade may look at.
type Input struct {
	Receipt *types.Receipt
	Factory common.Address
	Sender  common.Address
	// Event is the exact creation event the factory is expected to emit.
	Event abi.Event
	// KnownEvents is the full known event set used by the heuristic scan.
	KnownEvents []abi.Event
	// ReturnData is the simulated return value of the creation call, if any.
	ReturnData []byte
	// Exclude lists system addresses that must never be returned.
	Exclude []common.Address
	// TxLink is embedded in the ExtractionFailed message.
	TxLink string
}

type strategy struct {
	source Source
	run    func(in *Input, ok func(common.Address) bool) (common.Address, bool)
}

// Extractor runs the ordered strategy cascade and stops at the first hit.
type Extractor struct {
	logger     *slog.Logger
	strategies []strategy
}

// NewExtractor creates an extractor with the standard cascade.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger: logger,
		strategies: []strategy{
			{SourceDecodedEvent, decodedEvent},
			{SourceEventScan, eventScan},
			{SourceNonFactoryLog, nonFactoryLog},
			{SourceTopicScan, topicScan},
			{SourceReturnData, returnData},
			{SourceReceiptContract, receiptContract},
		},
	}
}

// Extract returns the created contract's address. The zero address, the
// factory, the sender and every excluded address are skipped wherever they
// appear. When every strategy is exhausted the error is a
// failure.KindExtractionFailed.
func (x *Extractor) Extract(in Input) (Address, error) {
	if in.Receipt == nil {
		return Address{}, failure.ExtractionFailed(common.Hash{}, in.TxLink)
	}
	ok := func(addr common.Address) bool {
		return addr != (common.Address{}) &&
			addr != in.Factory &&
			addr != in.Sender &&
			!lo.Contains(in.Exclude, addr)
	}

	for _, s := range x.strategies {
		addr, found := s.run(&in, ok)
		if !found {
			x.logger.Debug("extraction strategy missed", "strategy", s.source.String(), "tx", in.Receipt.TxHash.Hex())
			continue
		}
		x.logger.Info("contract address extracted", "address", addr.Hex(), "strategy", s.source.String())
		return Address{Value: addr, Source: s.source, Confidence: s.source.Confidence()}, nil
	}

	x.logger.Warn("no contract address found in receipt", "tx", in.Receipt.TxHash.Hex(), "logs", len(in.Receipt.Logs))
	return Address{}, failure.ExtractionFailed(in.Receipt.TxHash, in.TxLink)
}

func decodedEvent(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	if in.Event.ID == (common.Hash{}) {
		return common.Address{}, false
	}
	for _, l := range in.Receipt.Logs {
		if l == nil || len(l.Topics) == 0 || l.Topics[0] != in.Event.ID {
			continue
		}
		if addr, found := eventAddress(in.Event, l, ok); found {
			return addr, true
		}
	}
	return common.Address{}, false
}

func eventScan(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	for _, l := range in.Receipt.Logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		for _, ev := range in.KnownEvents {
			if ev.ID != l.Topics[0] || !lo.Contains(creationEventNames, ev.Name) {
				continue
			}
			if addr, found := eventAddress(ev, l, ok); found {
				return addr, true
			}
		}
	}
	return common.Address{}, false
}

func nonFactoryLog(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	for _, l := range in.Receipt.Logs {
		if l != nil && ok(l.Address) {
			return l.Address, true
		}
	}
	return common.Address{}, false
}

func topicScan(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	for _, l := range in.Receipt.Logs {
		if l == nil || len(l.Topics) < 2 {
			continue
		}
		for _, topic := range l.Topics[1:] {
			if addr, found := wordAddress(topic.Bytes()); found && ok(addr) {
				return addr, true
			}
		}
	}
	return common.Address{}, false
}

func returnData(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	if len(in.ReturnData) < common.HashLength {
		return common.Address{}, false
	}
	addr, found := wordAddress(in.ReturnData[:common.HashLength])
	return addr, found && ok(addr)
}

func receiptContract(in *Input, ok func(common.Address) bool) (common.Address, bool) {
	addr := in.Receipt.ContractAddress
	return addr, ok(addr)
}

// eventAddress decodes l against ev and picks the address of the created
// contract: a field named like one, else the first acceptable address field.
func eventAddress(ev abi.Event, l *types.Log, ok func(common.Address) bool) (common.Address, bool) {
	fields, err := eventAddresses(ev, l)
	if err != nil {
		return common.Address{}, false
	}
	for _, name := range createdFields {
		if addr, present := fields[name]; present && ok(addr) {
			return addr, true
		}
	}
	for _, arg := range ev.Inputs {
		if addr, present := fields[arg.Name]; present && ok(addr) {
			return addr, true
		}
	}
	return common.Address{}, false
}

// eventAddresses returns every address-typed field of the decoded log by name.
func eventAddresses(ev abi.Event, l *types.Log) (map[string]common.Address, error) {
	indexed := lo.Filter(ev.Inputs, func(a abi.Argument, _ int) bool { return a.Indexed })
	if len(l.Topics) != len(indexed)+1 {
		return nil, errTopicCount
	}

	out := make(map[string]common.Address)
	for i, arg := range indexed {
		if arg.Type.T == abi.AddressTy {
			out[arg.Name] = common.BytesToAddress(l.Topics[i+1].Bytes())
		}
	}

	nonIndexed := ev.Inputs.NonIndexed()
	if len(nonIndexed) == 0 {
		return out, nil
	}
	values, err := nonIndexed.Unpack(l.Data)
	if err != nil {
		return nil, err
	}
	for i, arg := range nonIndexed {
		if addr, isAddr := values[i].(common.Address); isAddr {
			out[arg.Name] = addr
		}
	}
	return out, nil
}

// wordAddress reads a 32-byte word as a left-padded address.
func wordAddress(word []byte) (common.Address, bool) {
	if len(word) != common.HashLength {
		return common.Address{}, false
	}
	if !bytes.Equal(word[:12], make([]byte, 12)) {
		return common.Address{}, false
	}
	return common.BytesToAddress(word[12:]), true
}
