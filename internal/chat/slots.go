package chat

import (
	"fmt"
	"strings"
)

// PaymentMethod is one of the mock payment tokens the agent accepts.
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "mock_card"
	PaymentUPI        PaymentMethod = "mock_upi"
	PaymentNetBanking PaymentMethod = "mock_netbanking"
)

// Label returns the human-readable name for a payment token.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCard:
		return "Card"
	case PaymentUPI:
		return "UPI"
	case PaymentNetBanking:
		return "Net Banking"
	default:
		return string(p)
	}
}

// PaymentMethods lists the selectable payment tokens in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentCard, PaymentUPI, PaymentNetBanking}
}

// Address is a saved shipping address, read from the address collaborator.
type Address struct {
	ID        string
	Label     string
	IsDefault bool
}

// DisplayLabel returns the label, falling back to a generic name.
func (a Address) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return "Address"
}

// Outstanding reports which purchase slots the assistant's last reply still
// solicits.
type Outstanding struct {
	NeedsAddress bool
	NeedsPayment bool
}

// InferOutstandingSlots inspects free-text assistant output for solicitation
// cues. This is pure keyword matching: a reply that merely mentions
// "address" or "payment" also triggers, which is accepted heuristic
// behavior. Kept behind this function so a structured contract from the
// agent can replace it without touching the controller.
func InferOutstandingSlots(text string) Outstanding {
	lower := strings.ToLower(text)
	return Outstanding{
		NeedsAddress: strings.Contains(lower, "address"),
		NeedsPayment: strings.Contains(lower, "payment") || strings.Contains(lower, "method"),
	}
}

// Slots holds the two purchase selections collected before confirming a buy.
// Transient: reset whenever the message count changes.
type Slots struct {
	AddressID string
	Payment   PaymentMethod
}

// Complete reports whether both slots are chosen.
func (s Slots) Complete() bool {
	return s.AddressID != "" && s.Payment != ""
}

// PromptMode describes which selection affordance to present for the current
// assistant reply.
type PromptMode int

const (
	// PromptNone shows no quick actions.
	PromptNone PromptMode = iota
	// PromptJoint shows the combined address and payment selector.
	PromptJoint
	// PromptAddress offers the one-tap default-address reply.
	PromptAddress
	// PromptPayment offers one-tap payment tokens.
	PromptPayment
	// PromptAddAddress hands off to address management: the reply asks for
	// an address but the user has none saved.
	PromptAddAddress
)

// Dialogue is the slot-filling controller. It inspects the latest assistant
// message, tracks the two selection slots, and composes the follow-up turn
// once both are chosen.
type Dialogue struct {
	addresses []Address
	slots     Slots
	lastLen   int
}

// NewDialogue creates a controller over the given saved addresses.
func NewDialogue(addresses []Address) *Dialogue {
	return &Dialogue{addresses: addresses}
}

// SetAddresses replaces the address roster (refreshed on panel open). A
// lookup failure upstream degrades to an empty list.
func (d *Dialogue) SetAddresses(addresses []Address) {
	d.addresses = addresses
}

// Addresses returns the saved address roster.
func (d *Dialogue) Addresses() []Address {
	return d.addresses
}

// Slots returns the current selections.
func (d *Dialogue) Slots() Slots {
	return d.slots
}

// Observe must be called after the transcript changes. When the message
// count moved, the selections reset so a stale choice can never be replayed
// into a later, unrelated question.
func (d *Dialogue) Observe(t *Transcript) {
	if t.Len() != d.lastLen {
		d.lastLen = t.Len()
		d.slots = Slots{}
	}
}

// Mode decides which affordance to present. While a request is in flight no
// quick actions are shown.
func (d *Dialogue) Mode(t *Transcript, busy bool) PromptMode {
	if busy || t.Len() == 0 {
		return PromptNone
	}
	last, ok := t.LastAssistant()
	if !ok {
		return PromptNone
	}

	out := InferOutstandingSlots(last.Content)
	hasAddresses := len(d.addresses) > 0

	switch {
	case out.NeedsAddress && out.NeedsPayment && hasAddresses:
		return PromptJoint
	case out.NeedsAddress && !hasAddresses:
		return PromptAddAddress
	case out.NeedsAddress && !out.NeedsPayment:
		return PromptAddress
	case out.NeedsPayment && !out.NeedsAddress:
		return PromptPayment
	default:
		return PromptNone
	}
}

// SelectAddress records the address slot.
func (d *Dialogue) SelectAddress(id string) {
	d.slots.AddressID = id
}

// SelectPayment records the payment slot.
func (d *Dialogue) SelectPayment(p PaymentMethod) {
	d.slots.Payment = p
}

// Confirm composes the follow-up turn once both slots are chosen. The sent
// text is the literal "<addressId>, <paymentToken>" the agent parses; the
// display label is what the transcript shows in its place.
func (d *Dialogue) Confirm() (sendText, displayLabel string, ok bool) {
	if !d.slots.Complete() {
		return "", "", false
	}

	label := "Address"
	for _, a := range d.addresses {
		if a.ID == d.slots.AddressID {
			label = a.DisplayLabel()
			break
		}
	}

	sendText = fmt.Sprintf("%s, %s", d.slots.AddressID, d.slots.Payment)
	displayLabel = fmt.Sprintf("%s, %s", label, d.slots.Payment.Label())
	d.slots = Slots{}
	return sendText, displayLabel, true
}

// DefaultAddressReply is the one-tap reply when only the address is asked.
const DefaultAddressReply = "Use my default address"
