package webserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/catchfleet/src/fleet"
	"github.com/stake-plus/catchfleet/src/store"
)

const (
	defaultSpamSpeed  = 3000
	defaultCatchSpeed = 2000
)

type Accounts struct {
	store     AccountStore
	fleet     Fleet
	sanitizer *bluemonday.Policy
}

func NewAccounts(st AccountStore, fl Fleet) Accounts {
	return Accounts{store: st, fleet: fl, sanitizer: bluemonday.StrictPolicy()}
}

type createAccountRequest struct {
	Name           string   `json:"name" binding:"required,max=100"`
	Token          string   `json:"token" binding:"required"`
	CatchChannelID string   `json:"catchChannelId" binding:"required,numeric"`
	SpamChannelID  string   `json:"spamChannelId" binding:"required,numeric"`
	SpamSpeed      *int     `json:"spamSpeed" binding:"omitempty,min=1000"`
	CatchSpeed     *int     `json:"catchSpeed" binding:"omitempty,min=1000"`
	OwnerIDs       []string `json:"ownerIds" binding:"omitempty,dive,numeric"`
	MarketID       *string  `json:"marketId" binding:"omitempty,max=64"`
}

type updateAccountRequest struct {
	Name           *string   `json:"name" binding:"omitempty,min=1,max=100"`
	Token          *string   `json:"token" binding:"omitempty,min=1"`
	CatchChannelID *string   `json:"catchChannelId" binding:"omitempty,numeric"`
	SpamChannelID  *string   `json:"spamChannelId" binding:"omitempty,numeric"`
	SpamSpeed      *int      `json:"spamSpeed" binding:"omitempty,min=1000"`
	CatchSpeed     *int      `json:"catchSpeed" binding:"omitempty,min=1000"`
	OwnerIDs       *[]string `json:"ownerIds" binding:"omitempty,dive,numeric"`
	MarketID       *string   `json:"marketId" binding:"omitempty,max=64"`
}

type commandRequest struct {
	Type    string `json:"type" binding:"required,oneof=say market_buy click"`
	Payload string `json:"payload"`
}

type captchaRequest struct {
	Solution string `json:"solution"`
}

func (a Accounts) cleanName(name string) string {
	return strings.TrimSpace(a.sanitizer.Sanitize(name))
}

func (a Accounts) List(c *gin.Context) {
	accounts, err := a.store.ListAccounts(c.Request.Context())
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (a Accounts) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindError(err))
		return
	}

	name := a.cleanName(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, validationError{Message: "name is required", Field: "name"})
		return
	}

	acct := &store.Account{
		Name:           name,
		Token:          strings.TrimSpace(req.Token),
		CatchChannelID: req.CatchChannelID,
		SpamChannelID:  req.SpamChannelID,
		SpamSpeed:      defaultSpamSpeed,
		CatchSpeed:     defaultCatchSpeed,
		OwnerIDs:       req.OwnerIDs,
		MarketID:       req.MarketID,
	}
	if req.SpamSpeed != nil {
		acct.SpamSpeed = *req.SpamSpeed
	}
	if req.CatchSpeed != nil {
		acct.CatchSpeed = *req.CatchSpeed
	}

	if err := a.store.CreateAccount(c.Request.Context(), acct); err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (a Accounts) Get(c *gin.Context) {
	acct, ok := a.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (a Accounts) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindError(err))
		return
	}

	changes := store.Changes{}
	if req.Name != nil {
		name := a.cleanName(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, validationError{Message: "name is required", Field: "name"})
			return
		}
		changes[store.ColName] = name
	}
	if req.Token != nil {
		changes[store.ColToken] = strings.TrimSpace(*req.Token)
	}
	if req.CatchChannelID != nil {
		changes[store.ColCatchChannelID] = *req.CatchChannelID
	}
	if req.SpamChannelID != nil {
		changes[store.ColSpamChannelID] = *req.SpamChannelID
	}
	if req.SpamSpeed != nil {
		changes[store.ColSpamSpeed] = *req.SpamSpeed
	}
	if req.CatchSpeed != nil {
		changes[store.ColCatchSpeed] = *req.CatchSpeed
	}
	if req.OwnerIDs != nil {
		changes[store.ColOwnerIDs] = *req.OwnerIDs
	}
	if req.MarketID != nil {
		if *req.MarketID == "" {
			changes[store.ColMarketID] = nil
		} else {
			changes[store.ColMarketID] = *req.MarketID
		}
	}

	ctx := c.Request.Context()
	var (
		acct *store.Account
		err  error
	)
	if len(changes) == 0 {
		acct, err = a.store.GetAccount(ctx, id)
	} else {
		acct, err = a.store.UpdateAccount(ctx, id, changes)
	}
	if err != nil {
		storeError(c, err)
		return
	}

	if a.fleet.Live(id) {
		if err := a.fleet.UpdateConfig(id, *acct); err != nil {
			log.Printf("webserver: live config update for account %d: %v", id, err)
		}
	}
	c.JSON(http.StatusOK, acct)
}

func (a Accounts) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a.fleet.StopBot(ctx, id)
	if err := a.store.DeleteAccount(ctx, id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a Accounts) Start(c *gin.Context) {
	acct, ok := a.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := a.fleet.StartBot(ctx, *acct); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	fresh, err := a.store.GetAccount(ctx, acct.ID)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fresh)
}

func (a Accounts) Stop(c *gin.Context) {
	acct, ok := a.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a.fleet.StopBot(ctx, acct.ID)
	fresh, err := a.store.UpdateAccount(ctx, acct.ID, store.StatusChange(store.StatusStopped, ""))
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fresh)
}

func (a Accounts) Command(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindError(err))
		return
	}

	if err := a.fleet.ExecuteCommand(c.Request.Context(), id, req.Type, req.Payload); err != nil {
		msg := err.Error()
		if errors.Is(err, fleet.ErrNotLive) {
			msg = "Bot is not running"
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Captcha resumes the unit; the submitted solution is not checked.
func (a Accounts) Captcha(c *gin.Context) {
	acct, ok := a.load(c)
	if !ok {
		return
	}
	var req captchaRequest
	_ = c.ShouldBindJSON(&req)

	if err := a.fleet.ResumeAfterCaptcha(c.Request.Context(), acct.ID); err != nil {
		log.Printf("webserver: resume account %d: %v", acct.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a Accounts) load(c *gin.Context) (*store.Account, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	acct, err := a.store.GetAccount(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return nil, false
	}
	return acct, true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Account not found"})
		return 0, false
	}
	return uint(id), true
}

func storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Account not found"})
		return
	}
	serverError(c, err)
}

func serverError(c *gin.Context, err error) {
	log.Printf("webserver: %s %s [%s]: %v", c.Request.Method, c.FullPath(), c.GetString("requestId"), err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
