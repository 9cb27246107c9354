package presence

import (
	"errors"
	"fmt"
)

// ErrNoApplicationID はアプリケーションIDのないアクティビティでCDN URLを構築しようとした場合のエラー。
var ErrNoApplicationID = errors.New("activity has no application id")

// cdnAppAssetBase はアプリケーションアセットのCDN。
const cdnAppAssetBase = "https://cdn.discordapp.com/app-assets"

// AssetKind はAssetRefの状態を表す。
type AssetKind int

const (
	// AssetAbsent は画像URLを得る手段がないことを表す。
	AssetAbsent AssetKind = iota
	// AssetResolved は解決済みのURLを持つことを表す。
	AssetResolved
	// AssetDeferred は呼び出し時にURLを解決する関数を持つことを表す。
	AssetDeferred
)

// AssetRef は画像URLを解決する手段。上流のアセット表現はアダプタ層で
// 一度だけこの形に正規化され、正規化処理は実行時の型判定を行わない。
type AssetRef struct {
	kind     AssetKind
	url      string
	resolver func() (string, error)
}

// Resolved は解決済みURLのAssetRefを返す。空URLはAbsentになる。
func Resolved(url string) AssetRef {
	if url == "" {
		return AssetRef{}
	}
	return AssetRef{kind: AssetResolved, url: url}
}

// Deferred は遅延解決のAssetRefを返す。fnがnilの場合はAbsentになる。
func Deferred(fn func() (string, error)) AssetRef {
	if fn == nil {
		return AssetRef{}
	}
	return AssetRef{kind: AssetDeferred, resolver: fn}
}

// Kind はAssetRefの状態を返す。
func (a AssetRef) Kind() AssetKind {
	return a.kind
}

// Resolve はURLを返す。Absentの場合や解決結果が空の場合はエラーを返す。
func (a AssetRef) Resolve() (string, error) {
	switch a.kind {
	case AssetResolved:
		return a.url, nil
	case AssetDeferred:
		u, err := a.resolver()
		if err != nil {
			return "", err
		}
		if u == "" {
			return "", errors.New("asset resolver returned empty url")
		}
		return u, nil
	default:
		return "", errors.New("asset is absent")
	}
}

// ImageAsset はアクティビティの画像1枠（large/small）を表す。
// URLはアセットオブジェクトが提供するURL解決手段、Keyは生のアセットキー。
type ImageAsset struct {
	URL AssetRef
	Key string
}

// CDNAssetURL はアプリケーションIDとアセットキーからCDN URLを構築する。
func CDNAssetURL(applicationID, key string) (string, error) {
	if applicationID == "" {
		return "", ErrNoApplicationID
	}
	if key == "" {
		return "", errors.New("asset key is empty")
	}
	return fmt.Sprintf("%s/%s/%s.png", cdnAppAssetBase, applicationID, key), nil
}
