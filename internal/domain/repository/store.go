package repository

import "context"

// Store 仓储集合（工作单元）
//
// Every multi-statement chat operation runs inside WithinTx so the
// statements commit or roll back together. The Store passed to fn is bound
// to the transaction; fn must not use the outer Store.
type Store interface {
	Sessions() SessionRepository
	Messages() MessageRepository
	Participants() ParticipantRepository
	Agents() AgentStatusRepository
	QuickResponses() QuickResponseRepository
	Files() FileRepository
	Tags() TagRepository
	Users() UserRepository

	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
