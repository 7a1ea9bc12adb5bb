// 管理画面向けBFFゲートウェイのエントリポイント。
// ブラウザセッションの管理と、学務システムバックエンドへの
// 認証付きリクエスト転送を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/campushub/internal/gateway"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
