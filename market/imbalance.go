package market

import "mbo-backtester/fixed"

// CalculateImbalance calculates the imbalance between bid and ask volumes
// Imbalance = (BidVol - AskVol) / (BidVol + AskVol)，定点数，范围 [-Scale, Scale]。
func CalculateImbalance(bidVolume, askVolume uint64) int64 {
	total := bidVolume + askVolume
	if total == 0 {
		return 0
	}
	diff := int64(bidVolume) - int64(askVolume)
	return fixed.MulDiv(diff, fixed.Scale, int64(total))
}

// ImbalanceFromSnapshot 用快照前 levels 档计算挂单量不平衡。
func ImbalanceFromSnapshot(snap []BidAskPair, levels int) int64 {
	if levels <= 0 {
		return 0
	}
	var bid, ask uint64
	for i, p := range snap {
		if i >= levels {
			break
		}
		bid += p.BidSz
		ask += p.AskSz
	}
	return CalculateImbalance(bid, ask)
}
