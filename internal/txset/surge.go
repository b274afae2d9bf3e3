package txset

// SurgePricingFilter sorts transactions by fee-per-operation descending
// (ties broken by transaction hash ascending, the same tie-break
// SortForHash uses elsewhere) and truncates to the prefix that fits within
// maxOperations: the first transaction whose operations would overflow the
// budget, and everything after it in priority order, is dropped, even if a
// later, smaller transaction would otherwise still fit.
func (f *Frame) SurgePricingFilter(maxOperations int) {
	total := 0
	for _, tx := range f.transactions {
		total += len(tx.Operations)
	}
	if total <= maxOperations {
		return
	}

	ordered := make([]Transaction, len(f.transactions))
	copy(ordered, f.transactions)
	sortBySurgePriority(ordered)

	kept := ordered[:0:0]
	remaining := 0
	for _, tx := range ordered {
		ops := len(tx.Operations)
		if remaining+ops > maxOperations {
			break
		}
		kept = append(kept, tx)
		remaining += ops
	}
	f.transactions = kept
}

// sortBySurgePriority orders transactions highest fee-per-operation first,
// tying by hash ascending. Comparing a/b.Operations via cross-multiplication
// avoids a floating-point division.
func sortBySurgePriority(txs []Transaction) {
	less := func(i, j int) bool {
		a, b := txs[i], txs[j]
		aOps, bOps := int64(len(a.Operations)), int64(len(b.Operations))
		if aOps == 0 {
			aOps = 1
		}
		if bOps == 0 {
			bOps = 1
		}
		// a.Fee/aOps > b.Fee/bOps  <=>  a.Fee*bOps > b.Fee*aOps
		lhs := a.Fee * bOps
		rhs := b.Fee * aOps
		if lhs != rhs {
			return lhs > rhs
		}
		return lessHash(a.Hash, b.Hash)
	}
	insertionSortTx(txs, less)
}

// insertionSortTx is a small stable sort so SurgePricingFilter does not
// depend on sort.Slice's (unspecified-stability) pivot choice for the tie
// cases already broken explicitly in less.
func insertionSortTx(txs []Transaction, less func(i, j int) bool) {
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			txs[j], txs[j-1] = txs[j-1], txs[j]
		}
	}
}
