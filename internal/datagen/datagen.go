package datagen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"fraudsim/internal/model"
)

var (
	currencies       = []string{"INR", "USD", "EUR", "GBP"}
	transactionTypes = []string{"TRANSFER", "WITHDRAW", "DEPOSIT", "PAYMENT"}
	channels         = []string{"MOBILE", "ATM", "CARD", "NETBANKING"}
	locations        = []string{"Mumbai", "Hyderabad", "Bangalore", "Delhi", "Pune", "Chennai"}
)

// Generator produces synthetic transactions for load and demo traffic. Most
// are unremarkable; a configurable fraction carries a fraud scenario so the
// rule and scoring stages have something to chew on.
type Generator struct {
	rng           *rand.Rand
	FraudFraction float64
}

func New(seed int64) *Generator {
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		FraudFraction: 0.15,
	}
}

func (g *Generator) Generate(count int) []model.Transaction {
	out := make([]model.Transaction, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Transaction())
	}
	return out
}

func (g *Generator) Transaction() model.Transaction {
	txn := model.Transaction{
		TransactionID:   "TXN-" + uuid.NewString(),
		Timestamp:       model.NewTime(g.recentTime()),
		Currency:        pick(g.rng, currencies),
		Amount:          round2(100 + g.rng.Float64()*90000),
		SenderAccount:   g.account(),
		ReceiverAccount: g.account(),
		TransactionType: pick(g.rng, transactionTypes),
		Channel:         pick(g.rng, channels),
		IPAddress:       g.ip(),
		Location:        pick(g.rng, locations),
	}
	if g.rng.Float64() < g.FraudFraction {
		g.applyFraudScenario(&txn)
	}
	return txn
}

func (g *Generator) applyFraudScenario(txn *model.Transaction) {
	switch g.rng.Intn(3) {
	case 0:
		txn.Amount = round2(150000 + g.rng.Float64()*500000)
	case 1:
		txn.IPAddress = fmt.Sprintf("172.%d.%d.%d", g.rng.Intn(32), g.rng.Intn(256), g.rng.Intn(256))
	default:
		txn.Amount = round2(150000 + g.rng.Float64()*500000)
		txn.IPAddress = fmt.Sprintf("172.%d.%d.%d", g.rng.Intn(32), g.rng.Intn(256), g.rng.Intn(256))
	}
}

func (g *Generator) account() string {
	return fmt.Sprintf("AC%08d", 10000000+g.rng.Intn(90000000))
}

func (g *Generator) ip() string {
	return fmt.Sprintf("%d.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256))
}

func (g *Generator) recentTime() time.Time {
	offset := time.Duration(g.rng.Intn(300)) * time.Second
	return time.Now().UTC().Add(-offset)
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
