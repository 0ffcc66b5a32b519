package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fraudsim/internal/model"
)

// DecodeTransaction parses one JSON transaction from a kafka message or REST
// body. Timestamp parsing accepts the generator wire formats; an unparsable
// timestamp is a client error, not a pipeline fault.
func DecodeTransaction(data []byte) (*model.Transaction, error) {
	var txn model.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if err := validate(&txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func validate(txn *model.Transaction) error {
	if strings.TrimSpace(txn.TransactionID) == "" {
		return errors.New("transactionId is required")
	}
	if strings.TrimSpace(txn.SenderAccount) == "" {
		return errors.New("senderAccount is required")
	}
	if strings.TrimSpace(txn.ReceiverAccount) == "" {
		return errors.New("receiverAccount is required")
	}
	return nil
}
