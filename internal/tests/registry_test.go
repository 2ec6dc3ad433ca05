package tests

import (
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idsee/registry-backend/internal/models"
)

type verifyResult struct {
	Found                 bool    `json:"found"`
	ConfirmedAndCertified bool    `json:"confirmed_and_certified"`
	BreederVerified       bool    `json:"breeder_verified"`
	MotherKnown           bool    `json:"mother_known"`
	RegistrationDate      *string `json:"registration_date"`
}

type balance struct {
	Credits       int `json:"credits"`
	LockedCredits int `json:"locked_credits"`
	Available     int `json:"available"`
}

func (suite *APITestSuite) publicVerify(chipID string) verifyResult {
	code, response := suite.do(http.MethodGet, "/v1/verify/"+chipID, "", nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var out verifyResult
	suite.data(response, &out)
	return out
}

func (suite *APITestSuite) balance(token string) balance {
	code, response := suite.do(http.MethodGet, "/v1/credits", token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var out balance
	suite.data(response, &out)
	return out
}

func (suite *APITestSuite) TestRegisterAndConfirmAnimal() {
	_, breeder := suite.verifiedProfessional("breeder@example.com", models.RoleBreeder, "KVK-1")
	_, vet := suite.verifiedProfessional("vet@example.com", models.RoleVet, "VET-1")

	code, response := suite.do(http.MethodPost, "/v1/animals", vet, map[string]interface{}{
		"chip_id":                 "528-1234-5678-9012",
		"species":                 "dog",
		"breed":                   "Labrador",
		"mother_chip_id":          "528000000000099",
		"breeder_professional_id": "KVK-1",
	})
	require.Equal(suite.T(), http.StatusCreated, code)
	var registered struct {
		RegistrationID string `json:"registration_id"`
		Status         string `json:"status"`
	}
	suite.data(response, &registered)
	assert.Equal(suite.T(), "PENDING", registered.Status)
	assert.Equal(suite.T(), 4, suite.balance(vet).Available)

	pending := suite.publicVerify("528123456789012")
	assert.True(suite.T(), pending.Found)
	assert.False(suite.T(), pending.ConfirmedAndCertified)
	assert.Nil(suite.T(), pending.RegistrationDate)

	code, response = suite.do(http.MethodGet, "/v1/confirmations/pending", breeder, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var list struct {
		Registrations []struct {
			RegistrationID string `json:"registration_id"`
			SubmitterEmail string `json:"submitter_email"`
		} `json:"registrations"`
	}
	suite.data(response, &list)
	require.Len(suite.T(), list.Registrations, 1)
	assert.Equal(suite.T(), registered.RegistrationID, list.Registrations[0].RegistrationID)
	assert.Equal(suite.T(), "vet@example.com", list.Registrations[0].SubmitterEmail)

	code, _ = suite.do(http.MethodPost, "/v1/confirmations/"+registered.RegistrationID+"/confirm", vet, nil)
	assert.Equal(suite.T(), http.StatusForbidden, code, "only breeders reach the confirmation routes")

	code, response = suite.do(http.MethodPost, "/v1/confirmations/"+registered.RegistrationID+"/confirm", breeder, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var confirmed struct {
		Status            string  `json:"status"`
		ExternalReference *string `json:"external_reference"`
	}
	suite.data(response, &confirmed)
	assert.Equal(suite.T(), "CONFIRMED", confirmed.Status)
	assert.NotNil(suite.T(), confirmed.ExternalReference)

	code, response = suite.do(http.MethodPost, "/v1/confirmations/"+registered.RegistrationID+"/confirm", breeder, nil)
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), "ALREADY_CONFIRMED", response.Error.Code)

	certified := suite.publicVerify("5281-2345-6789-012")
	assert.True(suite.T(), certified.Found)
	assert.True(suite.T(), certified.ConfirmedAndCertified)
	assert.True(suite.T(), certified.BreederVerified)
	assert.True(suite.T(), certified.MotherKnown)
	assert.NotNil(suite.T(), certified.RegistrationDate)

	code, response = suite.do(http.MethodGet, "/v1/notifications", vet, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Contains(suite.T(), string(response.Data), string(models.NotificationRegistrationConfirmed))
}

func (suite *APITestSuite) TestRegisterAnimalErrors() {
	_, vet := suite.verifiedProfessional("vet@example.com", models.RoleVet, "VET-1")
	suite.register("buyer@example.com", models.RoleBuyer, "")
	buyerToken := suite.login("buyer@example.com")

	body := map[string]interface{}{
		"chip_id":                 "528000000000001",
		"species":                 "cat",
		"breeder_professional_id": "KVK-1",
	}

	code, _ := suite.do(http.MethodPost, "/v1/animals", buyerToken, body)
	assert.Equal(suite.T(), http.StatusForbidden, code)

	code, _ = suite.do(http.MethodPost, "/v1/animals", vet, body)
	require.Equal(suite.T(), http.StatusCreated, code)

	code, response := suite.do(http.MethodPost, "/v1/animals", vet, body)
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), "DUPLICATE_CHIP", response.Error.Code)

	code, response = suite.do(http.MethodPost, "/v1/animals", vet, map[string]interface{}{
		"chip_id": "1234", "species": "cat", "breeder_professional_id": "KVK-1",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", response.Error.Code)

	for i := 0; i < 4; i++ {
		code, _ = suite.do(http.MethodPost, "/v1/animals", vet, map[string]interface{}{
			"chip_id": "52800000000010" + string(rune('0'+i)), "species": "cat", "breeder_professional_id": "KVK-1",
		})
		require.Equal(suite.T(), http.StatusCreated, code)
	}
	code, response = suite.do(http.MethodPost, "/v1/animals", vet, map[string]interface{}{
		"chip_id": "528000000000200", "species": "cat", "breeder_professional_id": "KVK-1",
	})
	assert.Equal(suite.T(), http.StatusPaymentRequired, code)
	assert.Equal(suite.T(), "INSUFFICIENT_CREDITS", response.Error.Code)
	assert.False(suite.T(), suite.publicVerify("528000000000200").Found)
}

func (suite *APITestSuite) TestPublicVerifyUnknownChip() {
	result := suite.publicVerify("999999999999999")
	assert.Equal(suite.T(), verifyResult{}, result)

	code, response := suite.do(http.MethodGet, "/v1/verify/123", "", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "INVALID_CHIP_ID", response.Error.Code)
}

func (suite *APITestSuite) TestPeerVerificationFlow() {
	vetID, vet := suite.verifiedProfessional("vet@example.com", models.RoleVet, "VET-1")
	suite.register("chipper@example.com", models.RoleChipper, "")
	chipper := suite.login("chipper@example.com")
	suite.verifyEmail(chipper)

	code, _ := suite.do(http.MethodPost, "/v1/admin/credits/grant", suite.admin, map[string]interface{}{
		"user_id": vetID,
		"amount":  10,
		"reason":  "bond funding",
	})
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Equal(suite.T(), balance{Credits: 15, Available: 15}, suite.balance(vet))

	code, response := suite.do(http.MethodPost, "/v1/verification/request", chipper, map[string]interface{}{
		"professional_id":   "CH-1",
		"professional_type": "chipper",
	})
	require.Equal(suite.T(), http.StatusCreated, code)
	var submitted struct {
		Request struct {
			ID string `json:"id"`
		} `json:"request"`
	}
	suite.data(response, &submitted)

	code, _ = suite.do(http.MethodGet, "/v1/verification/requests", chipper, nil)
	assert.Equal(suite.T(), http.StatusForbidden, code, "pending professionals cannot review requests")

	code, response = suite.do(http.MethodPost, "/v1/verification/peer/"+submitted.Request.ID, vet, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var approved struct {
		VerificationID string `json:"verification_id"`
		BondAmount     int    `json:"bond_amount"`
	}
	suite.data(response, &approved)
	assert.Equal(suite.T(), 10, approved.BondAmount)
	assert.Equal(suite.T(), balance{Credits: 15, LockedCredits: 10, Available: 5}, suite.balance(vet))

	code, response = suite.do(http.MethodPost, "/v1/verification/release-bond/"+approved.VerificationID, vet, nil)
	assert.Equal(suite.T(), http.StatusConflict, code)
	assert.Equal(suite.T(), "TOO_EARLY", response.Error.Code)

	code, _ = suite.do(http.MethodPost, "/v1/admin/bonds/"+approved.VerificationID+"/forfeit", vet, map[string]interface{}{
		"reason": "fraud",
	})
	assert.Equal(suite.T(), http.StatusForbidden, code)

	code, _ = suite.do(http.MethodPost, "/v1/admin/bonds/"+approved.VerificationID+"/forfeit", suite.admin, map[string]interface{}{
		"reason": "fraudulent diploma",
	})
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Equal(suite.T(), balance{Credits: 5, Available: 5}, suite.balance(vet))
}

func (suite *APITestSuite) TestCredits() {
	suite.register("buyer@example.com", models.RoleBuyer, "")
	token := suite.login("buyer@example.com")

	code, _ := suite.do(http.MethodGet, "/v1/credits/bundles", "", nil)
	assert.Equal(suite.T(), http.StatusOK, code)

	code, _ = suite.do(http.MethodPost, "/v1/credits/purchase", token, map[string]interface{}{"bundle_id": "starter"})
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Equal(suite.T(), 10, suite.balance(token).Available)

	code, response := suite.do(http.MethodPost, "/v1/credits/purchase", token, map[string]interface{}{"bundle_id": "gold"})
	assert.Equal(suite.T(), http.StatusNotFound, code)
	assert.Equal(suite.T(), "BUNDLE_NOT_FOUND", response.Error.Code)

	code, response = suite.do(http.MethodGet, "/v1/credits/transactions?limit=5", token, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Contains(suite.T(), string(response.Data), "Purchase: Starter bundle")
}

func (suite *APITestSuite) TestAdminRoutes() {
	suite.register("buyer@example.com", models.RoleBuyer, "")
	buyer := suite.login("buyer@example.com")

	code, _ := suite.do(http.MethodGet, "/v1/admin/stats", buyer, nil)
	assert.Equal(suite.T(), http.StatusForbidden, code)

	code, response := suite.do(http.MethodGet, "/v1/admin/stats", suite.admin, nil)
	require.Equal(suite.T(), http.StatusOK, code)
	var out struct {
		Stats struct {
			Users      int64  `json:"users"`
			AnchorMode string `json:"anchor_mode"`
		} `json:"stats"`
	}
	suite.data(response, &out)
	assert.Equal(suite.T(), int64(2), out.Stats.Users)
	assert.Equal(suite.T(), "demo", out.Stats.AnchorMode)

	code, _ = suite.do(http.MethodGet, "/v1/admin/users?role=buyer", suite.admin, nil)
	assert.Equal(suite.T(), http.StatusOK, code)

	code, _ = suite.do(http.MethodPut, "/v1/admin/users/not-a-uuid/suspension", suite.admin, map[string]interface{}{"suspended": true})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
}
