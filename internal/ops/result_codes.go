// Package ops implements the operation appliers whose design the core
// cares most about: AllowTrust, PathPayment, and ManageOffer. Each applier
// returns a result code rather than a Go error for anything short of a
// storage-invariant violation — operation failure is an ordinary, fully
// deterministic outcome every replica must agree on bit-for-bit (spec §7
// stratum 1).
package ops

// AllowTrustResultCode enumerates AllowTrustOp outcomes. Values mirror the
// ordering of the original ALLOW_TRUST_* XDR enum (stellar-core's
// AllowTrustOpFrame, TransactionResult.x) even though this module does not
// import the generated XDR constants directly (see the xdrcodec design
// note in DESIGN.md).
type AllowTrustResultCode int32

const (
	AllowTrustSuccess       AllowTrustResultCode = 0
	AllowTrustMalformed     AllowTrustResultCode = -1
	AllowTrustNoTrustLine   AllowTrustResultCode = -2
	AllowTrustNotRequired   AllowTrustResultCode = -3
	AllowTrustCantRevoke    AllowTrustResultCode = -4
)

func (c AllowTrustResultCode) String() string {
	switch c {
	case AllowTrustSuccess:
		return "ALLOW_TRUST_SUCCESS"
	case AllowTrustMalformed:
		return "ALLOW_TRUST_MALFORMED"
	case AllowTrustNoTrustLine:
		return "ALLOW_TRUST_NO_TRUST_LINE"
	case AllowTrustNotRequired:
		return "ALLOW_TRUST_TRUST_NOT_REQUIRED"
	case AllowTrustCantRevoke:
		return "ALLOW_TRUST_CANT_REVOKE"
	default:
		return "ALLOW_TRUST_UNKNOWN"
	}
}

// PathPaymentResultCode enumerates PathPaymentOp outcomes, matching spec
// §4 row "operation result codes" and §3's example list exactly.
type PathPaymentResultCode int32

const (
	PathPaymentSuccess          PathPaymentResultCode = 0
	PathPaymentMalformed        PathPaymentResultCode = -1
	PathPaymentUnderfunded      PathPaymentResultCode = -2
	PathPaymentSrcNoTrust       PathPaymentResultCode = -3
	PathPaymentSrcNotAuthorized PathPaymentResultCode = -4
	PathPaymentNoDestination    PathPaymentResultCode = -5
	PathPaymentNoTrust          PathPaymentResultCode = -6
	PathPaymentNotAuthorized    PathPaymentResultCode = -7
	PathPaymentLineFull         PathPaymentResultCode = -8
	PathPaymentNoIssuer         PathPaymentResultCode = -9
	PathPaymentTooFewOffers     PathPaymentResultCode = -10
	PathPaymentOverSendMax      PathPaymentResultCode = -11
)

func (c PathPaymentResultCode) String() string {
	switch c {
	case PathPaymentSuccess:
		return "PATH_PAYMENT_SUCCESS"
	case PathPaymentMalformed:
		return "PATH_PAYMENT_MALFORMED"
	case PathPaymentUnderfunded:
		return "PATH_PAYMENT_UNDERFUNDED"
	case PathPaymentSrcNoTrust:
		return "PATH_PAYMENT_SRC_NO_TRUST"
	case PathPaymentSrcNotAuthorized:
		return "PATH_PAYMENT_SRC_NOT_AUTHORIZED"
	case PathPaymentNoDestination:
		return "PATH_PAYMENT_NO_DESTINATION"
	case PathPaymentNoTrust:
		return "PATH_PAYMENT_NO_TRUST"
	case PathPaymentNotAuthorized:
		return "PATH_PAYMENT_NOT_AUTHORIZED"
	case PathPaymentLineFull:
		return "PATH_PAYMENT_LINE_FULL"
	case PathPaymentNoIssuer:
		return "PATH_PAYMENT_NO_ISSUER"
	case PathPaymentTooFewOffers:
		return "PATH_PAYMENT_TOO_FEW_OFFERS"
	case PathPaymentOverSendMax:
		return "PATH_PAYMENT_OVER_SENDMAX"
	default:
		return "PATH_PAYMENT_UNKNOWN"
	}
}

// ManageOfferResultCode enumerates ManageOfferOp outcomes **[ADDED]** per
// SPEC_FULL.md §4.6.1 — the original's ManageOfferOpFrame was referenced
// but not retrieved in full, so this set is reconstructed from
// OfferFrame's constructor invariants and the offer-entry invariants in
// spec §3.
type ManageOfferResultCode int32

const (
	ManageOfferSuccess             ManageOfferResultCode = 0
	ManageOfferMalformed            ManageOfferResultCode = -1
	ManageOfferSellNoTrust          ManageOfferResultCode = -2
	ManageOfferBuyNoTrust           ManageOfferResultCode = -3
	ManageOfferSellingNotAuthorized ManageOfferResultCode = -4
	ManageOfferBuyingNotAuthorized  ManageOfferResultCode = -5
	ManageOfferLineFull             ManageOfferResultCode = -6
	ManageOfferUnderfunded          ManageOfferResultCode = -7
	ManageOfferCrossSelf            ManageOfferResultCode = -8
	ManageOfferSellNoIssuer         ManageOfferResultCode = -9
	ManageOfferBuyNoIssuer          ManageOfferResultCode = -10
	ManageOfferNotFound             ManageOfferResultCode = -11
	ManageOfferLowReserve           ManageOfferResultCode = -12
)

func (c ManageOfferResultCode) String() string {
	switch c {
	case ManageOfferSuccess:
		return "MANAGE_OFFER_SUCCESS"
	case ManageOfferMalformed:
		return "MANAGE_OFFER_MALFORMED"
	case ManageOfferSellNoTrust:
		return "MANAGE_OFFER_SELL_NO_TRUST"
	case ManageOfferBuyNoTrust:
		return "MANAGE_OFFER_BUY_NO_TRUST"
	case ManageOfferSellingNotAuthorized:
		return "MANAGE_OFFER_SELLING_NOT_AUTHORIZED"
	case ManageOfferBuyingNotAuthorized:
		return "MANAGE_OFFER_BUYING_NOT_AUTHORIZED"
	case ManageOfferLineFull:
		return "MANAGE_OFFER_LINE_FULL"
	case ManageOfferUnderfunded:
		return "MANAGE_OFFER_UNDERFUNDED"
	case ManageOfferCrossSelf:
		return "MANAGE_OFFER_CROSS_SELF"
	case ManageOfferSellNoIssuer:
		return "MANAGE_OFFER_SELL_NO_ISSUER"
	case ManageOfferBuyNoIssuer:
		return "MANAGE_OFFER_BUY_NO_ISSUER"
	case ManageOfferNotFound:
		return "MANAGE_OFFER_NOT_FOUND"
	case ManageOfferLowReserve:
		return "MANAGE_OFFER_LOW_RESERVE"
	default:
		return "MANAGE_OFFER_UNKNOWN"
	}
}
