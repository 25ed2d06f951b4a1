package types

import (
	"fmt"

	"github.com/samber/lo"
)

// SubscriberOwnerType identifies whether a subscriber is an individual user
// or an organisation. The two are mutually exclusive owner references.
type SubscriberOwnerType string

const (
	SubscriberOwnerTypeUser         SubscriberOwnerType = "user"
	SubscriberOwnerTypeOrganisation SubscriberOwnerType = "organisation"
)

func (t SubscriberOwnerType) String() string {
	return string(t)
}

func (t SubscriberOwnerType) Validate() error {
	allowed := []SubscriberOwnerType{
		SubscriberOwnerTypeUser,
		SubscriberOwnerTypeOrganisation,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid subscriber owner type: %s", t)
	}
	return nil
}
