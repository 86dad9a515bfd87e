package domain

import (
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/store"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

const orderVersion = 1

// Order mirrors original_source/server/Order.h: a purchase of a parcel,
// with payment-provider reference fields the distilled spec.md drops
// but which SPEC_FULL.md §6 re-adds.
type Order struct {
	ID          idgen.OrderID
	UserID      idgen.UserID
	ParcelID    idgen.ParcelID
	CreatedTime idgen.Timestamp

	PayerEmail    string
	GrossPayment  float64
	Currency      string
	PayPalData    string
	CoinbaseCode  string
	CoinbaseState string
	Confirmed     bool

	DBKey store.DBKey
	Dirty bool
}

func (o *Order) Kind() store.RecordKind { return store.KindOrder }
func (o *Order) DBKeyGet() store.DBKey  { return o.DBKey }
func (o *Order) DBKeySet(k store.DBKey) { o.DBKey = k }

func (o *Order) Encode() []byte {
	pw := store.NewPayloadWriter(orderVersion)
	pw.U64(uint64(o.ID))
	pw.U32(uint32(o.UserID))
	pw.U32(uint32(o.ParcelID))
	pw.I64(int64(o.CreatedTime))
	pw.Str(o.PayerEmail)
	pw.F64(o.GrossPayment)
	pw.Str(o.Currency)
	pw.Str(o.PayPalData)
	pw.Str(o.CoinbaseCode)
	pw.Str(o.CoinbaseState)
	pw.Bool(o.Confirmed)
	return pw.Finish()
}

func DecodeOrder(payload []byte) (*Order, error) {
	pr, err := store.NewPayloadReader(payload)
	if err != nil {
		return nil, err
	}
	o := &Order{}
	o.ID = idgen.OrderID(pr.U64())
	o.UserID = idgen.UserID(pr.U32())
	o.ParcelID = idgen.ParcelID(pr.U32())
	o.CreatedTime = idgen.Timestamp(pr.I64())
	o.PayerEmail = pr.Str()
	o.GrossPayment = pr.F64()
	o.Currency = pr.Str()
	o.PayPalData = pr.Str()
	o.CoinbaseCode = pr.Str()
	o.CoinbaseState = pr.Str()
	o.Confirmed = pr.Bool()
	if pr.Err() != nil {
		return nil, werrors.Integrity("order", 0, "%v", pr.Err())
	}
	return o, nil
}
