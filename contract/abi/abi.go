package abi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrInvalidEvent = errors.New("invalid event")

type ABI struct {
	abi.ABI
}

func MustReadABI(rawJSON string) ABI {
	res, err := abi.JSON(strings.NewReader(rawJSON))
	if err != nil {
		panic(err)
	}
	return ABI{res}
}

func (a *ABI) AllEvents() map[string]bool {
	events := make(map[string]bool, len(a.Events))
	for _, event := range a.Events {
		events[event.String()] = true
	}
	return events
}

func (a *ABI) FindMatchingEventABI(topics []common.Hash) *abi.Event {
	for _, e := range a.Events {
		if e.ID == topics[0] {
			indexed := Indexed(e.Inputs)
			if len(indexed) == len(topics)-1 {
				e := e
				return &e
			}
		}
	}
	return nil
}

// ParseLog returns an empty event name for logs that match no event of the ABI.
func (a *ABI) ParseLog(log *types.Log) (string, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, fmt.Errorf("can't process event without topics: %w", ErrInvalidEvent)
	}
	event := a.FindMatchingEventABI(log.Topics)
	if event == nil {
		return "", nil, nil
	}
	values, err := decodeEventLog(event, log.Topics, log.Data)
	if err != nil {
		return "", nil, fmt.Errorf("can't decode event log: %w", err)
	}
	return event.String(), values, nil
}

func Indexed(args abi.Arguments) abi.Arguments {
	var indexed abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func decodeEventLog(event *abi.Event, topics []common.Hash, data []byte) (map[string]interface{}, error) {
	indexed := Indexed(event.Inputs)
	values := make(map[string]interface{})
	if len(indexed) < len(event.Inputs) {
		if err := event.Inputs.UnpackIntoMap(values, data); err != nil {
			return nil, fmt.Errorf("can't unpack data: %w", err)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, topics[1:]); err != nil {
		return nil, fmt.Errorf("can't unpack topics: %w", err)
	}
	return values, nil
}
