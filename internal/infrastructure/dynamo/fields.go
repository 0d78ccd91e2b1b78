package dynamo

// DynamoDB attribute and index names shared by the stores and Bootstrap.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldNotificationID = "notification_id"
	fieldUserID         = "user_id"
	fieldCreatedAt      = "created_at"
	fieldRead           = "read"
	fieldType           = "type"
	fieldRole           = "role"

	indexUserCreatedAt = "user_id-created_at-index"
	indexUserRead      = "user_id-read-index"
	indexRole          = "role-index"
)

// createdAtLayout has a fixed width so created_at sorts lexicographically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// Batch limits imposed by DynamoDB.
const (
	maxBatchWrite = 25
	maxBatchGet   = 100
	maxBatchRetry = 5
)
