package presence

import (
	"errors"
	"time"
)

// RawPresence はチャットサービスから得た1メンバー分のプレゼンス。
// アダプタ層が上流の型から変換して生成する。
type RawPresence struct {
	UserID     string
	Username   string
	GlobalName string
	AvatarURL  string
	Status     string
	// Activities は上流が報告した順序を保持する。
	Activities []RawActivity
}

// RawActivity は上流の1アクティビティ。
type RawActivity struct {
	Name          string
	Type          int
	Details       string
	State         string
	ApplicationID string
	// Start はゼロ値の場合「開始時刻なし」を表す。
	Start time.Time
	Large ImageAsset
	Small ImageAsset
}

// ErrMemberNotFound は追跡対象ユーザーがコミュニティのメンバーでないことを示す。
// エラーではなく「このコミュニティには居ない」という正常な結果として扱う。
var ErrMemberNotFound = errors.New("member not found")
