package constant

// Thread kinds
const (
	ThreadKindDirect  = "direct"  // Two-party conversation, unique per user pair
	ThreadKindEnquiry = "enquiry" // Topic-bound thread addressed to a company profile
)

// Enquiry thread types
const (
	ThreadTypeEnquiry = "enquiry"
	ThreadTypeDirect  = "direct"
)

// Message types
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeFile  = "file"
)

// Attachment kinds
const (
	AttachmentKindImage    = "image"
	AttachmentKindVideo    = "video"
	AttachmentKindDocument = "document"
)

// Upload policies selected by the caller
const (
	UploadPolicyAttachment = "attachment"
	UploadPolicyAvatar     = "avatar"
	UploadPolicyHeader     = "header"
)

const (
	// PreviewMaxRunes is the length of last_message_preview
	PreviewMaxRunes = 140
	// PairKeySeparator separates the two user ids of a direct pair key
	PairKeySeparator = ":"
	// MaxTitleLength is the column width of threads.title
	MaxTitleLength = 255
)

// MIME type prefixes
const (
	MimePrefixImage = "image/"
	MimePrefixVideo = "video/"
)

// Redis key patterns (without prefix, use RedisKey*() to get full key)
const (
	redisKeyProfile        = "profile:%d"         // profile:{profile_id}
	redisKeyPendingUploads = "attachment:pending" // hash: object key -> upload unix seconds
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "parley:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyProfile() string        { return redisKeyPrefix + redisKeyProfile }
func RedisKeyPendingUploads() string { return redisKeyPrefix + redisKeyPendingUploads }
