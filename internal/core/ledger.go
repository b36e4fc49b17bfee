package core

// WalletDelta is a signed balance change for one wallet.
type WalletDelta struct {
	WalletID string
	Amount   Money
}

// Deltas applies the sign rules:
//
//	expense   source -amount
//	income    source +amount
//	transfer  source -amount, destination +amount
//
// Empty wallet slots produce no delta; that happens when a referenced wallet
// was deleted and its reference cleared.
func Deltas(kind Kind, amount Money, source, dest string) []WalletDelta {
	var out []WalletDelta
	switch kind {
	case KindExpense:
		if source != "" {
			out = append(out, WalletDelta{WalletID: source, Amount: amount.Neg()})
		}
	case KindIncome:
		if source != "" {
			out = append(out, WalletDelta{WalletID: source, Amount: amount})
		}
	case KindTransfer:
		if source != "" {
			out = append(out, WalletDelta{WalletID: source, Amount: amount.Neg()})
		}
		if dest != "" {
			out = append(out, WalletDelta{WalletID: dest, Amount: amount})
		}
	}
	return out
}

// Inverse negates every delta.
func Inverse(deltas []WalletDelta) []WalletDelta {
	out := make([]WalletDelta, len(deltas))
	for i, d := range deltas {
		out[i] = WalletDelta{WalletID: d.WalletID, Amount: d.Amount.Neg()}
	}
	return out
}

// Deltas returns the forward deltas of the stored transaction.
func (t Transaction) Deltas() []WalletDelta {
	return Deltas(t.Kind, t.Amount, t.WalletID, t.DestWalletID)
}

// EffectOn returns the signed amount t contributes to walletID.
func (t Transaction) EffectOn(walletID string) Money {
	var total Money
	for _, d := range t.Deltas() {
		if d.WalletID == walletID {
			total = total.Add(d.Amount)
		}
	}
	return total
}
