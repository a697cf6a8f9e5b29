package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/models/reports"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"bitbucket.org/mmdatafocus/rentroll_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// respondError maps domain errors onto HTTP statuses. Anything unexpected
// is logged and returned as an opaque 500.
func respondError(c *gin.Context, module, fn string, err error) {
	var vErr *utils.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason, "field": vErr.Field})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		logger := config.GetLogger()
		config.LogError(logger, module, fn, "", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func resolvedOwnerId(c *gin.Context) (string, bool) {
	id, ok := utils.GetResolvedUserIdFromContext(c.Request.Context())
	if !ok || id == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return "", false
	}
	return id, true
}

// loadOwnerScope recomputes the caller's ownership scope. Scope is derived
// on every request, never cached, so a phone change takes effect on the
// next call.
func loadOwnerScope(ctx context.Context, ownerId string) (models.OwnerScope, error) {
	owner, err := models.GetUserById(ctx, ownerId)
	if err != nil {
		return models.OwnerScope{}, err
	}
	owners, err := models.ListUsersByRole(ctx, models.RoleOwner)
	if err != nil {
		return models.OwnerScope{}, err
	}
	return models.ComputeOwnerScope(owner, owners), nil
}

// requirePropertyInScope loads the property and confirms its owner falls in
// the caller's scope. Out-of-scope and missing both come back as not found
// so callers cannot probe for other owners' property ids.
func requirePropertyInScope(ctx context.Context, ownerId, propertyId string) (*models.Property, error) {
	property, err := models.GetPropertyById(ctx, propertyId)
	if err != nil {
		return nil, err
	}
	scope, err := loadOwnerScope(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(property.OwnerUID) {
		return nil, utils.ErrorRecordNotFound
	}
	return property, nil
}

func ownerDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		dashboard, err := models.LoadOwnerDashboard(c.Request.Context(), ownerId)
		if err != nil {
			respondError(c, "handlers.go", "ownerDashboardHandler", err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}

func createPropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var input models.PropertyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		property, err := models.CreateProperty(c.Request.Context(), ownerId, &input)
		if err != nil {
			respondError(c, "handlers.go", "createPropertyHandler", err)
			return
		}
		c.JSON(http.StatusCreated, property)
	}
}

func updatePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var input models.PropertyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		input.PropertyId = c.Param("id")
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, input.PropertyId); err != nil {
			respondError(c, "handlers.go", "updatePropertyHandler", err)
			return
		}
		property, err := models.UpdateProperty(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "handlers.go", "updatePropertyHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func updatePropertyChargesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var input models.PropertyChargesInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		input.PropertyId = c.Param("id")
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, input.PropertyId); err != nil {
			respondError(c, "handlers.go", "updatePropertyChargesHandler", err)
			return
		}
		property, err := models.UpdatePropertyCharges(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "handlers.go", "updatePropertyChargesHandler", err)
			return
		}
		c.JSON(http.StatusOK, property)
	}
}

func deletePropertyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		propertyId := c.Param("id")
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, propertyId); err != nil {
			respondError(c, "handlers.go", "deletePropertyHandler", err)
			return
		}
		if err := models.DeleteProperty(c.Request.Context(), propertyId); err != nil {
			respondError(c, "handlers.go", "deletePropertyHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": propertyId})
	}
}

type meterReadingRequest struct {
	CurrentMeterReading string `json:"current_meter_reading" binding:"required"`
}

func meterReadingHandler() gin.HandlerFunc {
	store := workflow.NewLedgerStore()

	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var req meterReadingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current_meter_reading is required"})
			return
		}
		reading, err := decimal.NewFromString(strings.TrimSpace(req.CurrentMeterReading))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current_meter_reading must be numeric", "field": "current_meter_reading"})
			return
		}

		propertyId := c.Param("id")
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, propertyId); err != nil {
			respondError(c, "handlers.go", "meterReadingHandler", err)
			return
		}

		ledger, err := workflow.ReconcileMeterReading(c.Request.Context(), store, propertyId, reading)
		if err != nil {
			respondError(c, "handlers.go", "meterReadingHandler", err)
			return
		}
		c.JSON(http.StatusOK, ledger)
	}
}

func saveTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var input models.TenantInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, strings.TrimSpace(input.PropertyId)); err != nil {
			respondError(c, "handlers.go", "saveTenantHandler", err)
			return
		}
		tenant, err := models.SaveTenant(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "handlers.go", "saveTenantHandler", err)
			return
		}
		c.JSON(http.StatusOK, tenant)
	}
}

func deleteTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		tenantId := c.Param("id")
		tenant, err := models.GetUserById(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, "handlers.go", "deleteTenantHandler", err)
			return
		}
		propertyId := utils.RefTerminalID(tenant.PropertyID)
		if propertyId != "" {
			if _, err := requirePropertyInScope(c.Request.Context(), ownerId, propertyId); err != nil {
				respondError(c, "handlers.go", "deleteTenantHandler", err)
				return
			}
		}
		if err := models.DeleteTenant(c.Request.Context(), tenantId); err != nil {
			respondError(c, "handlers.go", "deleteTenantHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": tenantId})
	}
}

type complaintStatusRequest struct {
	Status models.ComplaintStatus `json:"status" binding:"required"`
}

func complaintStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var req complaintStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}

		complaintId := c.Param("id")
		complaint, err := models.GetComplaintById(c.Request.Context(), complaintId)
		if err != nil {
			respondError(c, "handlers.go", "complaintStatusHandler", err)
			return
		}
		if _, err := requirePropertyInScope(c.Request.Context(), ownerId, utils.RefTerminalID(complaint.PropertyID)); err != nil {
			respondError(c, "handlers.go", "complaintStatusHandler", err)
			return
		}

		updated, err := models.UpdateComplaintStatus(c.Request.Context(), complaintId, req.Status)
		if err != nil {
			respondError(c, "handlers.go", "complaintStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func ownerSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		var input models.OwnerSettingsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		owner, err := models.UpdateOwnerSettings(c.Request.Context(), ownerId, &input)
		if err != nil {
			respondError(c, "handlers.go", "ownerSettingsHandler", err)
			return
		}
		c.JSON(http.StatusOK, owner)
	}
}

func ledgerHistoryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		owner, err := models.GetUserById(ctx, ownerId)
		if err != nil {
			respondError(c, "handlers.go", "ledgerHistoryExportHandler", err)
			return
		}
		scope, err := loadOwnerScope(ctx, ownerId)
		if err != nil {
			respondError(c, "handlers.go", "ledgerHistoryExportHandler", err)
			return
		}
		properties, err := models.ListProperties(ctx)
		if err != nil {
			respondError(c, "handlers.go", "ledgerHistoryExportHandler", err)
			return
		}

		rows, err := reports.GetLedgerHistoryReport(ctx, scope.FilterProperties(properties))
		if err != nil {
			respondError(c, "handlers.go", "ledgerHistoryExportHandler", err)
			return
		}

		fileName := reports.LedgerHistoryFileName(owner.DisplayName(), utils.MonthYearLabel(time.Now().UTC()))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+fileName)
		if err := reports.ExportLedgerHistoryXlsx(c.Writer, rows); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "handlers.go", "ledgerHistoryExportHandler", "write xlsx", nil, err)
		}
	}
}

func tenantDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		dashboard, err := models.LoadTenantDashboard(c.Request.Context(), tenantId)
		if err != nil {
			respondError(c, "handlers.go", "tenantDashboardHandler", err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}

func createComplaintHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, ok := resolvedOwnerId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		var input models.ComplaintInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		// A tenant files against their own property only.
		tenant, err := models.GetUserById(ctx, tenantId)
		if err != nil {
			respondError(c, "handlers.go", "createComplaintHandler", err)
			return
		}
		ownPropertyId := utils.RefTerminalID(tenant.PropertyID)
		if ownPropertyId == "" || utils.RefTerminalID(input.PropertyId) != ownPropertyId {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		input.TenantUID = tenantId

		complaint, err := models.CreateComplaint(ctx, &input)
		if err != nil {
			respondError(c, "handlers.go", "createComplaintHandler", err)
			return
		}
		c.JSON(http.StatusCreated, complaint)
	}
}

type deviceTokenRequest struct {
	FcmToken               string `json:"fcm_token" binding:"required"`
	NotificationPermission string `json:"notification_permission"`
	Role                   string `json:"role" binding:"required"`
}

// deviceTokenHandler registers a push token for whichever role the caller
// claims; resolution still runs, so the token lands on the caller's own
// document or nowhere.
func deviceTokenHandler() gin.HandlerFunc {
	dir := workflow.NewPrincipalDirectory()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		uid, ok := utils.GetPrincipalUIDFromContext(ctx)
		if !ok || uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		email, _ := utils.GetPrincipalEmailFromContext(ctx)

		var req deviceTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fcm_token and role are required"})
			return
		}
		role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be owner or tenant", "field": "role"})
			return
		}

		resolution, err := workflow.ResolvePrincipal(ctx, dir, uid, email, role)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		if err := models.SaveDeviceToken(ctx, resolution.UserID, req.FcmToken, req.NotificationPermission); err != nil {
			respondError(c, "handlers.go", "deviceTokenHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": resolution.UserID})
	}
}
