package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts *AccountRepository
	Tokens   *TokenRepository
	Grants   *GrantRepository
	Contacts *ContactRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(exec),
		Tokens:   NewTokenRepository(exec),
		Grants:   NewGrantRepository(exec),
		Contacts: NewContactRepository(exec),
	}
}
