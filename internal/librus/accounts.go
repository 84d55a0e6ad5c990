package librus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an identifier the API sends either as a number or as a string.
type ID string

func (i *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var text string
	if json.Unmarshal(data, &text) == nil {
		*i = ID(text)
		return nil
	}
	var number json.Number
	err := json.Unmarshal(data, &number)
	if err != nil {
		return fmt.Errorf("id is neither a string nor a number: %s", string(data))
	}
	*i = ID(number.String())
	return nil
}

func (i ID) String() string {
	return string(i)
}

type Account struct {
	ID          ID     `json:"id"`
	Login       string `json:"login"`
	StudentName string `json:"studentName"`
	AccessToken string `json:"accessToken"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// ParseAccounts decodes a SynergiaAccounts payload, failing when it has no accounts.
func ParseAccounts(body []byte) ([]Account, error) {
	var parsed accountsResponse
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshal accounts: %s", ErrAccountOrTokenMissing, err.Error())
	}
	if len(parsed.Accounts) == 0 {
		return nil, ErrNoAccountsFound
	}
	return parsed.Accounts, nil
}

// BearerToken returns the access token of the first account.
func BearerToken(accounts []Account) (string, error) {
	if len(accounts) == 0 {
		return "", ErrNoAccountsFound
	}
	if accounts[0].AccessToken == "" {
		return "", ErrNoTokenInAccount
	}
	return accounts[0].AccessToken, nil
}

// MaskToken keeps the first `keep` characters of a token, a token no longer
// than `keep` is masked entirely.
func MaskToken(token string, keep int) string {
	runes := []rune(token)
	if len(runes) <= keep {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:keep]) + "..."
}
