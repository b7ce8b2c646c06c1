package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCodeForKind(t *testing.T) {
	if got := CodeForKind("insufficient_credits"); got != CodeInsufficientCredits {
		t.Fatalf("unexpected code: got=%d want=%d", got, CodeInsufficientCredits)
	}
	if got := CodeForKind("duplicate_payment"); got != CodeDuplicateRequest {
		t.Fatalf("unexpected code: got=%d want=%d", got, CodeDuplicateRequest)
	}
	if got := CodeForKind("something_else"); got != CodeBusinessError {
		t.Fatalf("unknown kind: got=%d want=%d", got, CodeBusinessError)
	}
}

func TestFailCarriesData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, "invalid_quantity", "bad", gin.H{"success": false})

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != CodeInvalidQuantity || body.Message != "bad" || body.Data == nil {
		t.Fatalf("unexpected body: %+v", body)
	}
}
