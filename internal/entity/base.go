package entity

import (
	"strconv"
	"time"

	"github.com/mbeoliero/parley/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenPairKey generates the canonical key of an unordered user pair
// Format: {min(userA,userB)}:{max(userA,userB)}
func GenPairKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return strconv.FormatInt(userA, 10) + constant.PairKeySeparator + strconv.FormatInt(userB, 10)
}
