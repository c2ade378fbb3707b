// Package pipeline enriches an order book with Production Plan IDs and
// products. Process is pure: it clones its inputs and either returns a new
// table or a *MissingColumnError, never a partial result.
package pipeline

import (
	"strings"

	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

// 订单簿列
const (
	ColVPONo            = "VPO No"
	ColPO               = "PO"
	ColSeason           = "Season"
	ColProductionPlanID = "Production Plan ID"
	ColGroupTechClass   = "Group Tech Class"
	ColCOQty            = "CO Qty"
	ColCustStyleNo      = "Cust Style No"
	ColStyle            = "Style"
	ColProduct          = "Product"
)

// 辅助表列
const (
	ColPOOrderNo  = "PO Order NO"
	ColMasterItem = "Master Item"
)

// 输入表名称，用于错误信息
const (
	TableOrders = "order book"
	TablePlans  = "production plan"
	TableStyles = "style mapping"
)

const (
	TargetGroupTechClass = "BELUNIQLO"
	SeasonPlanID         = "Season-23"
	seasonSuffix         = "23"
	unnamedPrefix        = "Unnamed"
)

// Stats 各步骤后的计数
type Stats struct {
	InputRows      int `json:"input_rows"`
	ClassRows      int `json:"class_rows"`
	SeasonFilled   int `json:"season_filled"`
	PlanMatched    int `json:"plan_matched"`
	PlanFallback   int `json:"plan_fallback"`
	OutputRows     int `json:"output_rows"`
	ProductMatched int `json:"product_matched"`
}

// Result 管道输出
type Result struct {
	Table *table.Table
	Stats Stats
}

// Process runs the enrichment and returns only the output table.
func Process(orders, plans, styles *table.Table) (*table.Table, error) {
	res, err := Run(orders, plans, styles)
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

// Run applies the enrichment steps in order. The caller's tables are not
// modified.
func Run(orders, plans, styles *table.Table) (*Result, error) {
	var st Stats
	st.InputRows = orders.Len()

	work := orders.Clone()

	if err := derivePO(work); err != nil {
		return nil, err
	}
	ensurePlanID(work)
	n, err := backfillPlanID(work)
	if err != nil {
		return nil, err
	}
	st.SeasonFilled = n

	work, err = filterClass(work)
	if err != nil {
		return nil, err
	}
	st.ClassRows = work.Len()

	planWork, err := normalizeKeys(work, plans)
	if err != nil {
		return nil, err
	}

	work = dropUnnamed(work)
	planWork = dropUnnamed(planWork)

	if st.PlanMatched, err = joinPlanID(work, planWork); err != nil {
		return nil, err
	}
	st.PlanFallback = fallbackPlanID(work)

	if work, err = filterQty(work); err != nil {
		return nil, err
	}
	st.OutputRows = work.Len()

	if err := deriveStyle(work); err != nil {
		return nil, err
	}
	if st.ProductMatched, err = mapProduct(work, styles); err != nil {
		return nil, err
	}

	return &Result{Table: dropUnnamed(work), Stats: st}, nil
}

// derivePO: "8..." keeps the first 8 characters, "D..." becomes
// "P" + [1:len-3], anything else passes through. PO is then text.
func derivePO(t *table.Table) error {
	if !t.HasColumn(ColVPONo) {
		return missing(TableOrders, ColVPONo)
	}
	t.Apply(ColPO, func(r int) table.Value {
		return table.String(poFromVPO(t.Value(r, ColVPONo)).Text())
	})
	if t.HasColumn(ColSeason) {
		t.Apply(ColSeason, func(r int) table.Value {
			return table.String(t.Value(r, ColSeason).Text())
		})
	}
	return nil
}

func poFromVPO(v table.Value) table.Value {
	s, ok := v.Str()
	if !ok {
		return v
	}
	switch {
	case strings.HasPrefix(s, "8"):
		return table.String(slice(s, 0, 8))
	case strings.HasPrefix(s, "D"):
		return table.String("P" + slice(s, 1, runeLen(s)-3))
	}
	return v
}

func ensurePlanID(t *table.Table) {
	if t.HasColumn(ColProductionPlanID) {
		return
	}
	t.Apply(ColProductionPlanID, func(int) table.Value { return table.Int(0) })
}

func backfillPlanID(t *table.Table) (int, error) {
	if !t.HasColumn(ColPO) {
		return 0, missing(TableOrders, ColPO)
	}
	if !t.HasColumn(ColSeason) {
		return 0, missing(TableOrders, ColSeason)
	}
	filled := 0
	t.Apply(ColProductionPlanID, func(r int) table.Value {
		cur := t.Value(r, ColProductionPlanID)
		po := t.Value(r, ColPO)
		if po.IsNull() || !(cur.IsNull() || cur.IsZero()) {
			return cur
		}
		if po.HasPrefix("8") {
			return po
		}
		if lastN(t.Value(r, ColSeason).Text(), 2) == seasonSuffix {
			filled++
			return table.String(SeasonPlanID)
		}
		return cur
	})
	return filled, nil
}

func filterClass(t *table.Table) (*table.Table, error) {
	if !t.HasColumn(ColGroupTechClass) {
		return nil, missing(TableOrders, ColGroupTechClass)
	}
	return t.Filter(func(r int) bool {
		s, ok := t.Value(r, ColGroupTechClass).Str()
		return ok && s == TargetGroupTechClass
	}), nil
}

// normalizeKeys trims PO in place and returns a trimmed copy of plans.
func normalizeKeys(t, plans *table.Table) (*table.Table, error) {
	if !plans.HasColumn(ColPOOrderNo) {
		return nil, missing(TablePlans, ColPOOrderNo)
	}
	t.Apply(ColPO, func(r int) table.Value {
		return table.String(strings.TrimSpace(t.Value(r, ColPO).Text()))
	})
	pw := plans.Clone()
	pw.Apply(ColPOOrderNo, func(r int) table.Value {
		return table.String(strings.TrimSpace(pw.Value(r, ColPOOrderNo).Text()))
	})
	return pw, nil
}

func dropUnnamed(t *table.Table) *table.Table {
	return t.DropColumns(isUnnamed)
}

func isUnnamed(name string) bool {
	return strings.HasPrefix(name, unnamedPrefix)
}

// joinPlanID overwrites every plan id with the lookup result; misses are null.
func joinPlanID(t, plans *table.Table) (int, error) {
	if !plans.HasColumn(ColProductionPlanID) {
		return 0, missing(TablePlans, ColProductionPlanID)
	}
	lookup, err := plans.Lookup(ColPOOrderNo, ColProductionPlanID)
	if err != nil {
		return 0, err
	}
	matched := 0
	t.Apply(ColProductionPlanID, func(r int) table.Value {
		v, ok := lookup[t.Value(r, ColPO).Text()]
		if !ok {
			return table.Null()
		}
		matched++
		return v
	})
	return matched, nil
}

func fallbackPlanID(t *table.Table) int {
	filled := 0
	t.Apply(ColProductionPlanID, func(r int) table.Value {
		cur := t.Value(r, ColProductionPlanID)
		po := t.Value(r, ColPO)
		if cur.IsNull() && po.HasPrefix("8") {
			filled++
			return po
		}
		return cur
	})
	return filled
}

func filterQty(t *table.Table) (*table.Table, error) {
	if !t.HasColumn(ColCOQty) {
		return nil, missing(TableOrders, ColCOQty)
	}
	return t.Filter(func(r int) bool {
		d, ok := t.Value(r, ColCOQty).Num()
		return ok && d.Sign() >= 0
	}), nil
}

func deriveStyle(t *table.Table) error {
	if !t.HasColumn(ColCustStyleNo) {
		return missing(TableOrders, ColCustStyleNo)
	}
	t.Apply(ColStyle, func(r int) table.Value {
		v := t.Value(r, ColCustStyleNo)
		if s, ok := v.Str(); ok {
			return table.String(slice(s, 2, 10))
		}
		return v
	})
	return nil
}

func mapProduct(t, styles *table.Table) (int, error) {
	for _, c := range []string{ColStyle, ColMasterItem} {
		if !styles.HasColumn(c) {
			return 0, missing(TableStyles, c)
		}
	}
	lookup, err := styles.Lookup(ColStyle, ColMasterItem)
	if err != nil {
		return 0, err
	}
	matched := 0
	t.Apply(ColProduct, func(r int) table.Value {
		style := t.Value(r, ColStyle)
		if style.IsNull() {
			return table.Null()
		}
		v, ok := lookup[style.Text()]
		if !ok {
			return table.Null()
		}
		matched++
		return v
	})
	return matched, nil
}
