package user

import (
	"github.com/spf13/viper"
	"golang.org/x/text/secure/precis"
)

const DisablePrecisKey = "security.disable_precis"

// cleanPassword runs the PRECIS OpaqueString profile over a password before it is hashed or checked. Admins can turn
// this off if accounts imported from elsewhere have passwords the profile rejects.
func cleanPassword(input string) (string, error) {
	if viper.GetBool(DisablePrecisKey) {
		return input, nil
	}
	return precis.OpaqueString.String(input)
}
