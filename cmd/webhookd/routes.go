package main

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	provisioning "github.com/goliatone/go-provisioning"
	gocommandadapter "github.com/goliatone/go-provisioning/adapters/gocommand"
	provcommand "github.com/goliatone/go-provisioning/command"
	"github.com/goliatone/go-provisioning/core"
	"github.com/goliatone/go-provisioning/inbound"
	provquery "github.com/goliatone/go-provisioning/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type installRequest struct {
	LocationIDs []string `json:"locationIds"`
}

func newRouter(facade *provisioning.Facade, withSentry bool) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if withSentry {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	engine.Use(renderErrors())

	engine.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/webhooks/highlevel", inbound.GinMiddleware(facade.Dispatcher()), acknowledgeWebhook)

	engine.POST("/companies/:companyId/locations", func(c *gin.Context) {
		var body installRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.Error(goerrors.Wrap(err, goerrors.CategoryBadInput, "webhookd: invalid install body").
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ProvisioningErrorBadInput))
			return
		}
		report, _, err := gocommandadapter.DispatchWithResult[provcommand.InstallLocationsMessage, core.BulkInstallReport](
			c.Request.Context(),
			provcommand.InstallLocationsMessage{
				CompanyID:   c.Param("companyId"),
				LocationIDs: body.LocationIDs,
			},
		)
		status := http.StatusOK
		if err != nil {
			if report.Attempted == 0 {
				_ = c.Error(err)
				return
			}
			status = http.StatusMultiStatus
		}
		c.JSON(status, gin.H{
			"companyId": report.CompanyID,
			"attempted": report.Attempted,
			"succeeded": report.Succeeded,
			"failed":    report.Failed,
			"batches":   report.Batches,
			"failures":  report.FailedLocationIDs(),
		})
	})

	engine.DELETE("/tenants/:tenantId/session", func(c *gin.Context) {
		if err := gocommandadapter.Dispatch(c.Request.Context(), provcommand.UninstallMessage{TenantID: c.Param("tenantId")}); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	engine.GET("/tenants/:tenantId/session", func(c *gin.Context) {
		status, err := facade.Queries().GetSessionStatus.Query(c.Request.Context(), provquery.GetSessionStatusMessage{
			TenantID: c.Param("tenantId"),
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if installations := facade.Queries().GetInstallation; installations != nil {
		engine.GET("/tenants/:tenantId/installation", func(c *gin.Context) {
			installation, err := installations.Query(c.Request.Context(), provquery.GetInstallationMessage{
				TenantID: c.Param("tenantId"),
			})
			if err != nil {
				_ = c.Error(err)
				return
			}
			c.JSON(http.StatusOK, installation)
		})
	}
	return engine
}

// acknowledgeWebhook answers every dispatched event with 200 so the sender
// does not retry. Outcomes are reported through logs and metrics.
func acknowledgeWebhook(c *gin.Context) {
	result, ok := inbound.GinResult(c)
	if !ok {
		c.Status(http.StatusOK)
		return
	}
	body := gin.H{
		"phase": string(result.Phase),
		"route": string(result.Route),
	}
	if result.Reason != "" {
		body["reason"] = string(result.Reason)
	}
	c.JSON(http.StatusOK, body)
}

// renderErrors writes the last gin error as a provisioning error envelope
// when the handler did not write a response itself.
func renderErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		inbound.DefaultErrorHandler(c.Writer, c.Request, c.Errors.Last().Err)
	}
}
