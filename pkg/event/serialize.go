package event

import (
	"encoding/json"
	"fmt"
)

// Marshal はイベント名とペイロードからEnvelopeを構築し、JSONバイト列に変換する。
// WebSocketチャネルへ書き込む直前に使用する。
func Marshal(name Name, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}

	raw, err := json.Marshal(Envelope{Event: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("エンベロープのシリアライズに失敗: %w", err)
	}
	return raw, nil
}

// Unmarshal はWebSocketチャネルから読み込んだJSONバイト列をEnvelopeに変換する。
func Unmarshal(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("エンベロープのデシリアライズに失敗: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("イベント名が空です")
	}
	return &env, nil
}

// DecodeData はEnvelopeのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](env *Envelope) (*T, error) {
	var data T
	if len(env.Data) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("ペイロードのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
