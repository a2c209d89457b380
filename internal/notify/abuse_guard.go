package notify

// ApproveTest はテストSMSの送信可否を判定する。
// 前回テスト済みの番号と同じ番号（空でない場合のみ）への再テストは
// 拒否する。番号を変更すれば再テストできる。
// 番号未設定のユーザーはSMS送信自体が欠落番号として失敗するため、
// ここでは拒否しない。
func ApproveTest(currentPhone, lastTestedPhone string) bool {
	return currentPhone == "" || currentPhone != lastTestedPhone
}
